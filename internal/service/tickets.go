package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/models"
)

// TicketService reads the ownership ledger and the ticket search index.
type TicketService struct {
	owners inventory.OwnershipReader
	search TicketSearcher
}

func NewTicketService(owners inventory.OwnershipReader, search TicketSearcher) *TicketService {
	return &TicketService{owners: owners, search: search}
}

// ListOwned returns the caller's tickets, newest first.
func (s *TicketService) ListOwned(ctx context.Context, userID int64) ([]models.ListTicketsResponseItem, error) {
	records, err := s.owners.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	result := make([]models.ListTicketsResponseItem, len(records))
	for i, rec := range records {
		result[i] = models.ListTicketsResponseItem{
			EventID:   rec.EventID,
			Row:       rec.Row,
			Seat:      rec.Number,
			Barcode:   rec.Barcode,
			CreatedAt: rec.CreatedAt,
		}
	}
	return result, nil
}

// Lookup finds the ticket with barcode in the ledger.
func (s *TicketService) Lookup(ctx context.Context, barcode string) (*models.Ownership, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "barcode is required")
	}
	rec, err := s.owners.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket: %w", err)
	}
	if rec == nil {
		return nil, apperrors.Newf(apperrors.KindTicketNotFound, "no ticket with barcode %s", barcode)
	}
	return rec, nil
}

// Search queries the ticket index. Without an index only exact barcode
// matches from the ledger are returned.
func (s *TicketService) Search(ctx context.Context, query string, eventID int64, limit int) ([]models.TicketDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if s.search != nil {
		docs, err := s.search.SearchTickets(ctx, query, eventID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search tickets: %w", err)
		}
		return docs, nil
	}

	rec, err := s.owners.GetByBarcode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket: %w", err)
	}
	if rec == nil || (eventID > 0 && rec.EventID != eventID) {
		return []models.TicketDocument{}, nil
	}
	return []models.TicketDocument{TicketDocumentFrom(rec)}, nil
}

// TicketDocumentFrom projects an ownership record into its search document.
func TicketDocumentFrom(rec *models.Ownership) models.TicketDocument {
	doc := models.TicketDocument{
		Barcode:   rec.Barcode,
		EventID:   rec.EventID,
		Row:       rec.Row,
		Seat:      rec.Number,
		SeatLabel: rec.Key().String(),
		UserID:    rec.UserID,
		SoldAt:    rec.CreatedAt,
	}
	if rec.PaymentRef != nil {
		doc.PaymentRef = *rec.PaymentRef
	}
	return doc
}
