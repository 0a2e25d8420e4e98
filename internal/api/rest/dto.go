package rest

import (
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// TransferRequestDTO is the ownership transfer request body
type TransferRequestDTO struct {
	TerritoryID string `json:"territoryId" binding:"required"`
	UserID      string `json:"userId" binding:"required"`
	UserName    string `json:"userName"`
	Price       int64  `json:"price"`
	Reason      string `json:"reason" binding:"required"`
	PaymentID   string `json:"paymentId"`
	AuctionID   string `json:"auctionId"`
	RequestID   string `json:"requestId"`
}

// ToDomain converts the DTO into a transfer request
func (d TransferRequestDTO) ToDomain() domain.TransferRequest {
	return domain.TransferRequest{
		TerritoryID: d.TerritoryID,
		UserID:      d.UserID,
		UserName:    d.UserName,
		Price:       d.Price,
		Reason:      domain.TransferReason(d.Reason),
		PaymentID:   d.PaymentID,
		AuctionID:   d.AuctionID,
		RequestID:   d.RequestID,
	}
}

// TransferResponseDTO is the ownership transfer success body
type TransferResponseDTO struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	TerritoryID   string `json:"territoryId"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	Price         int64  `json:"price"`
}

// NewTransferResponse builds the success body from a transfer result
func NewTransferResponse(result *domain.TransferResult) TransferResponseDTO {
	return TransferResponseDTO{
		Success:       true,
		TransactionID: result.TransactionID,
		TerritoryID:   result.TerritoryID,
		UserID:        result.UserID,
		UserName:      result.UserName,
		Price:         result.Price,
	}
}

// StartAuctionRequestDTO is the start-auction request body
type StartAuctionRequestDTO struct {
	TerritoryID   string `json:"territoryId" binding:"required"`
	StartingPrice int64  `json:"startingPrice"`
	// DurationSeconds overrides the configured re-auction duration
	DurationSeconds int64 `json:"durationSeconds"`
}

// AuctionDTO is the wire form of an auction
type AuctionDTO struct {
	ID            string    `json:"id"`
	TerritoryID   string    `json:"territoryId"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	StartingPrice int64     `json:"startingPrice"`
	CurrentPrice  int64     `json:"currentPrice"`
	EndsAt        time.Time `json:"endsAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StartAuctionResponseDTO is the start-auction success body
type StartAuctionResponseDTO struct {
	Success bool       `json:"success"`
	Auction AuctionDTO `json:"auction"`
}

// NewStartAuctionResponse builds the success body from the created auction
func NewStartAuctionResponse(auction *schema.Auction) StartAuctionResponseDTO {
	return StartAuctionResponseDTO{
		Success: true,
		Auction: AuctionDTO{
			ID:            auction.ID,
			TerritoryID:   auction.TerritoryID,
			Status:        string(auction.Status),
			Reason:        string(auction.Reason),
			StartingPrice: auction.StartingPrice,
			CurrentPrice:  auction.CurrentPrice,
			EndsAt:        auction.EndsAt,
			CreatedAt:     auction.CreatedAt,
		},
	}
}

// SweepResponseDTO wraps a lifecycle sweep pass summary
type SweepResponseDTO struct {
	Success bool        `json:"success"`
	Stats   interface{} `json:"stats"`
}

// SettlementSweepResponseDTO is the settlement sweep summary
type SettlementSweepResponseDTO struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Errors    int  `json:"errors"`
}

// RankingSweepResponseDTO is the ranking sweep summary
type RankingSweepResponseDTO struct {
	Success     bool `json:"success"`
	Updated     int  `json:"updated"`
	Quarantined int  `json:"quarantined"`
}
