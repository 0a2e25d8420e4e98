package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelatlas/conquest-engine/internal/auction"
	"github.com/pixelatlas/conquest-engine/internal/integrity"
	"github.com/pixelatlas/conquest-engine/internal/lifecycle"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// Transfer performs an ownership transfer
	// POST /api/v1/territories/transfer
	Transfer(c *gin.Context)

	// AdminTransfer performs an administratively authorized transfer
	// POST /api/v1/admin/territories/transfer
	AdminTransfer(c *gin.Context)

	// StartAuction opens an auction for a territory
	// POST /api/v1/auctions
	StartAuction(c *gin.Context)

	// RunLifecycleSweep runs the territory lifecycle passes once
	// POST /internal/sweeps/lifecycle
	RunLifecycleSweep(c *gin.Context)

	// RunSettlementSweep settles due auctions once
	// POST /internal/sweeps/settlement
	RunSettlementSweep(c *gin.Context)

	// RunRankingSweep recomputes rankings once
	// POST /internal/sweeps/rankings
	RunRankingSweep(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	transfers auction.TransferService
	auctions  *auction.Manager
	sweep     *lifecycle.Sweep
	settler   *auction.Settler
	rankings  *integrity.Rankings
}

// NewHandler creates a new REST API handler
func NewHandler(
	transfers auction.TransferService,
	auctions *auction.Manager,
	sweep *lifecycle.Sweep,
	settler *auction.Settler,
	rankings *integrity.Rankings,
) Handler {
	return &handler{
		transfers: transfers,
		auctions:  auctions,
		sweep:     sweep,
		settler:   settler,
		rankings:  rankings,
	}
}

// Transfer performs an ownership transfer
func (h *handler) Transfer(c *gin.Context) {
	var body TransferRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), body.ToDomain())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewTransferResponse(result))
}

// AdminTransfer performs an administratively authorized transfer. The route
// guard (JWT) differs; the body contract is the same.
func (h *handler) AdminTransfer(c *gin.Context) {
	h.Transfer(c)
}

// StartAuction opens an auction for a territory
func (h *handler) StartAuction(c *gin.Context) {
	var body StartAuctionRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	created, err := h.auctions.StartAuction(c.Request.Context(), auction.StartRequest{
		TerritoryID:   body.TerritoryID,
		StartingPrice: body.StartingPrice,
		Duration:      time.Duration(body.DurationSeconds) * time.Second,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewStartAuctionResponse(created))
}

// RunLifecycleSweep runs the territory lifecycle passes once
func (h *handler) RunLifecycleSweep(c *gin.Context) {
	stats, err := h.sweep.RunOnce(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Lifecycle sweep failed")
		return
	}
	c.JSON(http.StatusOK, SweepResponseDTO{Success: true, Stats: stats})
}

// RunSettlementSweep settles due auctions once
func (h *handler) RunSettlementSweep(c *gin.Context) {
	result, err := h.settler.RunOnce(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Settlement sweep failed")
		return
	}
	c.JSON(http.StatusOK, SettlementSweepResponseDTO{
		Success:   true,
		Processed: result.Processed,
		Errors:    result.Errors,
	})
}

// RunRankingSweep recomputes rankings once
func (h *handler) RunRankingSweep(c *gin.Context) {
	result, err := h.rankings.RunOnce(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Ranking sweep failed")
		return
	}
	c.JSON(http.StatusOK, RankingSweepResponseDTO{
		Success:     true,
		Updated:     result.Committed,
		Quarantined: result.Quarantined,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
