package admin

import (
	"math"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/store"
)

// DashboardHandler serves GET /v0/admin/dashboard.
type DashboardHandler struct {
	store  *store.Store
	quotas *quota.Store
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(st *store.Store, quotas *quota.Store) *DashboardHandler {
	return &DashboardHandler{store: st, quotas: quotas}
}

// Overview aggregates usage across all companies: global totals, a
// per-company breakdown, and capped activity lists.
func (h *DashboardHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	totalGenerations, errTotal := h.store.CountAllGenerations(ctx)
	if errTotal != nil {
		h.fail(c, errTotal)
		return
	}
	totalUsers, errUsers := h.store.CountUsers(ctx, "")
	if errUsers != nil {
		h.fail(c, errUsers)
		return
	}
	active, errActive := h.store.CompaniesWithActivity(ctx)
	if errActive != nil {
		h.fail(c, errActive)
		return
	}

	companies := companySet(active, h.quotas.ConfiguredCompanies())
	breakdown := make([]gin.H, 0, len(companies))
	for _, company := range companies {
		generations, errCount := h.store.CountGenerations(ctx, company)
		if errCount != nil {
			h.fail(c, errCount)
			return
		}
		users, errCountUsers := h.store.CountUsers(ctx, company)
		if errCountUsers != nil {
			h.fail(c, errCountUsers)
			return
		}
		recent, errRecent := h.store.RecentGenerations(ctx, company, 10)
		if errRecent != nil {
			h.fail(c, errRecent)
			return
		}

		limit := h.quotas.Limit(company)
		remaining := int64(limit) - generations
		if remaining < 0 {
			remaining = 0
		}
		utilization := 0.0
		if limit > 0 {
			utilization = math.Round(float64(generations)/float64(limit)*1000) / 10
		}
		breakdown = append(breakdown, gin.H{
			"company":              company,
			"totalGenerations":     generations,
			"limit":                limit,
			"remainingGenerations": remaining,
			"users":                users,
			"recentGenerations":    recent,
			"utilizationRate":      utilization,
		})
	}

	recentActivity, errRecent := h.store.RecentGenerations(ctx, "", 10)
	if errRecent != nil {
		h.fail(c, errRecent)
		return
	}
	allGenerations, errAll := h.store.RecentGenerations(ctx, "", 50)
	if errAll != nil {
		h.fail(c, errAll)
		return
	}
	allUsers, errAllUsers := h.store.Users(ctx, "", 100)
	if errAllUsers != nil {
		h.fail(c, errAllUsers)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"overview": gin.H{
			"totalGenerations":      totalGenerations,
			"totalUsers":            totalUsers,
			"companiesWithActivity": len(active),
			"totalCompanies":        len(companies),
		},
		"companyBreakdown": breakdown,
		"recentActivity":   recentActivity,
		"allGenerations":   allGenerations,
		"allUsers":         allUsers,
	})
}

func (h *DashboardHandler) fail(c *gin.Context, err error) {
	log.WithError(err).Error("dashboard aggregation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
}

// companySet merges company lists into a sorted, deduplicated slice.
func companySet(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var companies []string
	for _, list := range lists {
		for _, company := range list {
			if _, ok := seen[company]; ok {
				continue
			}
			seen[company] = struct{}{}
			companies = append(companies, company)
		}
	}
	sort.Strings(companies)
	return companies
}
