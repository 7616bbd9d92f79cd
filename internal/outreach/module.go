package outreach

import (
	"net/http"
	"time"

	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes the outreach operational surface: the daily quota position
// and the manual reply check. The reply check is nil when IMAP is not
// configured; its route then reports unavailable.
type Module struct {
	ledger     quota.Ledger
	ceiling    int
	replyCheck *ReplyCheck
}

func NewModule(ledger quota.Ledger, ceiling int, replyCheck *ReplyCheck) *Module {
	return &Module{ledger: ledger, ceiling: ceiling, replyCheck: replyCheck}
}

func (m *Module) Name() string { return "outreach" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/outreach/quota", m.quotaStatus)
	ctx.Protected.POST("/outreach/check-replies", m.checkReplies)
}

// checkReplies runs one mailbox scan on demand, without waiting for the
// scheduler's next poll.
func (m *Module) checkReplies(c *gin.Context) {
	if m.replyCheck == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "reply detection not configured")
		return
	}

	result, err := m.replyCheck.Run(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusBadGateway, "reply check failed")
		return
	}
	httpkit.OK(c, result)
}

type quotaStatusResponse struct {
	Day       string `json:"day"`
	Ceiling   int    `json:"ceiling"`
	Remaining int    `json:"remaining"`
	Spent     int    `json:"spent"`
}

func (m *Module) quotaStatus(c *gin.Context) {
	now := time.Now()

	remaining, err := m.ledger.Remaining(c.Request.Context(), now)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "quota lookup failed")
		return
	}

	httpkit.OK(c, quotaStatusResponse{
		Day:       quota.PeriodKey(now).Format("2006-01-02"),
		Ceiling:   m.ceiling,
		Remaining: remaining,
		Spent:     m.ceiling - remaining,
	})
}
