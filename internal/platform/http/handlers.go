package http

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/backup"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/matching"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/search"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

const (
	defaultMetricsLimit = 10
	exportLimit         = 5000
)

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryBloodGroup parses an optional blood group query parameter.
func queryBloodGroup(c *gin.Context, key string) (model.BloodType, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return "", nil
	}
	return model.ParseBloodType(raw)
}

func (r *Router) getCompatibility(c *gin.Context) {
	group, err := model.ParseBloodType(c.Param("bloodGroup"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blood_group":      group,
		"can_donate_to":    matching.RecipientsForDonor(group),
		"can_receive_from": matching.DonorsForRecipient(group),
		"is_rare":          group.IsRare(),
	})
}

func (r *Router) searchDonors(c *gin.Context) {
	group, err := queryBloodGroup(c, "blood_group")
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.search.SearchDonors(c.Request.Context(), search.DonorSearch{
		BloodGroup: group,
		Location:   c.Query("location"),
		Limit:      queryInt(c, "limit", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  res.Items,
		"count":  len(res.Items),
		"source": res.Source,
	})
}

// matchRequest is the wire form of one blood request. Blood group and urgency accept the
// spelled variants ParseBloodType and ParseUrgency understand.
type matchRequest struct {
	ID            string          `json:"id"`
	BloodGroup    string          `json:"blood_group"`
	Location      *model.Location `json:"location"`
	UnitsNeeded   int             `json:"units_needed"`
	MaxDistanceKm float64         `json:"max_distance_km"`
	NeededBy      *time.Time      `json:"needed_by"`
	Urgency       string          `json:"urgency_level"`
}

func (m matchRequest) toContext() (model.RequestContext, error) {
	req := model.RequestContext{
		ID:            m.ID,
		Location:      m.Location,
		UnitsNeeded:   m.UnitsNeeded,
		MaxDistanceKm: m.MaxDistanceKm,
		NeededBy:      m.NeededBy,
	}
	if strings.TrimSpace(m.BloodGroup) != "" {
		group, err := model.ParseBloodType(m.BloodGroup)
		if err != nil {
			return req, err
		}
		req.BloodType = group
	}
	urgency, err := model.ParseUrgency(m.Urgency)
	if err != nil {
		return req, err
	}
	req.Urgency = urgency
	return req, nil
}

func (r *Router) matchEmergency(c *gin.Context) {
	var body matchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	req, err := body.toContext()
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.search.MatchEmergency(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type batchMatchReq struct {
	Requests []matchRequest `json:"requests"`
}

func (r *Router) batchMatch(c *gin.Context) {
	var body batchMatchReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	requests := make([]model.RequestContext, 0, len(body.Requests))
	for _, m := range body.Requests {
		req, err := m.toContext()
		if err != nil {
			writeError(c, err)
			return
		}
		requests = append(requests, req)
	}
	res, err := r.search.BatchMatch(c.Request.Context(), requests)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) listBloodBanks(c *gin.Context) {
	res, err := r.search.BloodBanks(c.Request.Context(), c.Query("location"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  res.Items,
		"count":  len(res.Items),
		"source": res.Source,
	})
}

func (r *Router) exportBloodBanks(c *gin.Context) {
	banks, err := r.cache.CachedBloodBanks(c.Request.Context(), repository.BankQuery{
		Location: c.Query("location"),
		Limit:    exportLimit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=blood_banks.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{"name", "address", "city", "state", "contact", "email", "latitude", "longitude", "government"}); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	for _, b := range banks {
		lat, lon := "", ""
		if b.Coordinates != nil {
			lat = strconv.FormatFloat(b.Coordinates.Latitude, 'f', 6, 64)
			lon = strconv.FormatFloat(b.Coordinates.Longitude, 'f', 6, 64)
		}
		row := []string{
			b.Name,
			b.Address,
			b.City,
			b.State,
			b.Contact,
			b.Email,
			lat,
			lon,
			strconv.FormatBool(b.IsGovernment),
		}
		if err := writer.Write(row); err != nil {
			r.logger.Warn("write csv row", zap.Error(err))
			return
		}
	}
}

func (r *Router) listAvailability(c *gin.Context) {
	group, err := queryBloodGroup(c, "blood_group")
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.search.Availability(c.Request.Context(), group, c.Query("location"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	total := 0
	for _, a := range res.Items {
		total += a.UnitsAvailable
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       res.Items,
		"count":       len(res.Items),
		"total_units": total,
		"source":      res.Source,
	})
}

func (r *Router) getHealth(c *gin.Context) {
	report := r.cache.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status == backup.HealthError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (r *Router) listMetrics(c *gin.Context) {
	records, err := r.cache.RecentMetrics(c.Request.Context(), queryInt(c, "limit", defaultMetricsLimit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

// startRefresh kicks off a cycle in the background and returns immediately.
func (r *Router) startRefresh(c *gin.Context) {
	force := c.Query("force") == "true"

	state, err := r.cache.State(c.Request.Context())
	if err != nil {
		r.logger.Warn("read cache state", zap.Error(err))
	}
	if state == backup.StateRefreshing {
		c.JSON(http.StatusConflict, gin.H{"status": backup.StatusSkipped, "message": "refresh already in progress"})
		return
	}

	go func() {
		res, err := r.cache.Refresh(r.base, force)
		if err != nil {
			r.logger.Error("manual refresh failed", zap.Error(err))
			return
		}
		r.logger.Info("manual refresh finished", zap.String("run_id", res.RunID), zap.String("status", string(res.Status)))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "started",
		"force":   force,
		"message": "Refresh started. Check progress with GET /api/backup/health",
	})
}
