package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ninex/internal/pdf"
	"ninex/internal/services"
)

type ReportHandler struct {
	accounts services.AccountService
	pdf      pdf.Generator
}

func NewReportHandler(accounts services.AccountService, gen pdf.Generator) *ReportHandler {
	return &ReportHandler{accounts: accounts, pdf: gen}
}

// @Summary      PDF-отчёт по доступным аккаунтам
// @Tags         Reports
// @Produce      application/pdf
// @Param        search   query  string  false  "Поиск по имени"
// @Param        sort     query  string  false  "latest|oldest|az|za|expiry_desc"
// @Param        payment  query  string  false  "paid|unpaid"
// @Success      200
// @Security     BearerAuth
// @Router       /api/accounts/report.pdf [get]
func (h *ReportHandler) AccountsPDF(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	q := services.ListQuery{
		Search:  strings.TrimSpace(c.Query("search")),
		Sort:    c.Query("sort"),
		Payment: c.Query("payment"),
	}
	records, complete, err := h.accounts.Report(c.Request.Context(), actor, q)
	if err != nil {
		respondError(c, "reports", "accounts", err)
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	if err := h.pdf.AccountsReport(&buf, pdf.ReportData{
		GeneratedBy: actor.Username,
		GeneratedAt: now,
		Search:      q.Search,
		Accounts:    records,
		Complete:    complete,
	}); err != nil {
		respondError(c, "reports", "accounts", err)
		return
	}
	log.Printf("[reports][accounts] by=%s records=%d complete=%v", actor.Username, len(records), complete)

	filename := fmt.Sprintf("accounts_%s.pdf", now.UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
