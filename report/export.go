package report

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/changeorders"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/projects"
	"github.com/formwork-pm/formwork/internal/shared"
)

// Handler serves PDF exports of a single project. Routes are mounted under
// the project group, so project access is already decided; the export flag
// is checked by the router and cost visibility shapes the document body.
type Handler struct {
	logger   *slog.Logger
	client   *Client
	projects *projects.Service
	orders   *changeorders.Service
	guard    *authz.Guard
	printer  *message.Printer
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, client *Client, projectSvc *projects.Service, orderSvc *changeorders.Service, guard *authz.Guard) *Handler {
	return &Handler{
		logger:   logger,
		client:   client,
		projects: projectSvc,
		orders:   orderSvc,
		guard:    guard,
		printer:  message.NewPrinter(language.English),
	}
}

// MountRoutes registers export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/export", h.export)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	principalID := shared.PrincipalIDFromContext(r.Context())
	set, err := h.guard.Resolve(r.Context(), principalID)
	if err != nil {
		h.logger.Error("resolve principal", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", "authorization store unreachable, retry")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	project, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.orders.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list change orders for export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	pdf, err := h.client.RenderHTML(r.Context(), h.summaryHTML(project, orders, set))
	if err != nil {
		h.logger.Error("render project summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Export Unavailable", "pdf renderer unreachable, retry")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", project.Code+"-summary.pdf"))
	_, _ = w.Write(pdf)
}

// summaryHTML builds the printable summary. Monetary figures appear only
// when the caller can view costs; the section is omitted entirely otherwise.
func (h *Handler) summaryHTML(p projects.Project, orders []changeorders.ChangeOrder, set authz.PermissionSet) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><title>Project Summary</title></head><body>")
	fmt.Fprintf(&b, "<h1>%s — %s</h1>", html.EscapeString(p.Code), html.EscapeString(p.Name))
	fmt.Fprintf(&b, "<p>Status: %s</p>", html.EscapeString(p.Status))
	fmt.Fprintf(&b, "<p>Generated: %s</p>", time.Now().UTC().Format(time.RFC3339))

	if set.CanViewCosts {
		b.WriteString("<h2>Costs</h2><table border=\"1\" cellpadding=\"4\">")
		fmt.Fprintf(&b, "<tr><td>Budget</td><td>%s</td></tr>", h.printer.Sprintf("%.2f", p.Budget))
		fmt.Fprintf(&b, "<tr><td>Actual cost</td><td>%s</td></tr>", h.printer.Sprintf("%.2f", p.ActualCost))
		b.WriteString("</table>")
	}

	b.WriteString("<h2>Change Orders</h2>")
	if len(orders) == 0 {
		b.WriteString("<p>None raised.</p>")
	} else {
		b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>#</th><th>Description</th><th>Status</th>")
		if set.CanViewCosts {
			b.WriteString("<th>Amount</th>")
		}
		b.WriteString("</tr>")
		for _, co := range orders {
			fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td>",
				co.Number, html.EscapeString(co.Description), html.EscapeString(co.Status))
			if set.CanViewCosts {
				fmt.Fprintf(&b, "<td>%s</td>", h.printer.Sprintf("%.2f", co.Amount))
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</table>")
	}

	b.WriteString("</body></html>")
	return b.String()
}
