package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
)

const requestColumns = `id, customer_id, image_ref, target_pharmacy_id, status, ai_analysis, reviewed_items, rejection_reason, created_at, updated_at, expires_at`

type requestRow struct {
	ID               string         `db:"id"`
	CustomerID       string         `db:"customer_id"`
	ImageRef         string         `db:"image_ref"`
	TargetPharmacyID string         `db:"target_pharmacy_id"`
	Status           string         `db:"status"`
	AIAnalysis       sql.NullString `db:"ai_analysis"`
	ReviewedItems    sql.NullString `db:"reviewed_items"`
	RejectionReason  sql.NullString `db:"rejection_reason"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
	ExpiresAt        sql.NullString `db:"expires_at"`
}

type quoteRow struct {
	ID           string          `db:"id"`
	RequestID    string          `db:"request_id"`
	PharmacyID   string          `db:"pharmacy_id"`
	PharmacyName string          `db:"pharmacy_name"`
	TotalValue   decimal.Decimal `db:"total_value"`
	Note         string          `db:"note"`
	CreatedAt    string          `db:"created_at"`
}

type RequestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req domain.PrescriptionRequest) error {
	row, err := toRow(req)
	if err != nil {
		return err
	}
	q := r.db.Rebind(`INSERT INTO prescription_requests (` + requestColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, q, row.ID, row.CustomerID, row.ImageRef, row.TargetPharmacyID, row.Status,
		row.AIAnalysis, row.ReviewedItems, row.RejectionReason, row.CreatedAt, row.UpdatedAt, row.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("request %s: %w", req.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Get loads a request together with its quote, if one was submitted.
func (r *RequestRepository) Get(ctx context.Context, id string) (domain.PrescriptionRequest, error) {
	var row requestRow
	q := r.db.Rebind(`SELECT ` + requestColumns + ` FROM prescription_requests WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return domain.PrescriptionRequest{}, notFound(err)
	}
	req, err := fromRow(row)
	if err != nil {
		return domain.PrescriptionRequest{}, err
	}
	if err := r.attachQuote(ctx, &req); err != nil {
		return domain.PrescriptionRequest{}, err
	}
	return req, nil
}

// ListByPharmacy returns requests targeting pharmacyID, newest first. An
// empty status lists every state.
func (r *RequestRepository) ListByPharmacy(ctx context.Context, pharmacyID string, status domain.Status) ([]domain.PrescriptionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM prescription_requests WHERE target_pharmacy_id = ?`
	args := []any{pharmacyID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list requests for %s: %w", pharmacyID, err)
	}
	out := make([]domain.PrescriptionRequest, 0, len(rows))
	for _, row := range rows {
		req, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		if err := r.attachQuote(ctx, &req); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// Transition stores next only if the request is still in expected. A newly
// attached quote is inserted in the same transaction. When another writer got
// there first no row matches and ErrStaleState is returned.
func (r *RequestRepository) Transition(ctx context.Context, next domain.PrescriptionRequest, expected domain.Status) error {
	row, err := toRow(next)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer rollback(tx)

	q := tx.Rebind(`UPDATE prescription_requests SET status = ?, reviewed_items = ?, rejection_reason = ?, updated_at = ? WHERE id = ? AND status = ?`)
	res, err := tx.ExecContext(ctx, q, row.Status, row.ReviewedItems, row.RejectionReason, row.UpdatedAt, row.ID, string(expected))
	if err != nil {
		return fmt.Errorf("update request %s: %w", next.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request %s: %w", next.ID, err)
	}
	if n == 0 {
		return ErrStaleState
	}

	if next.Status == domain.StatusQuoted && next.Quote != nil {
		if err := insertQuote(ctx, tx, *next.Quote); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func insertQuote(ctx context.Context, tx *sqlx.Tx, quote domain.Quote) error {
	q := tx.Rebind(`INSERT INTO quotes (id, request_id, pharmacy_id, pharmacy_name, total_value, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, q, quote.ID, quote.RequestID, quote.PharmacyID, quote.PharmacyName, quote.TotalValue, quote.Note, formatTime(quote.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrStaleState
		}
		return fmt.Errorf("insert quote: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO quote_items (quote_id, line_no, name, quantity, unit_price, unit_type, linked_stock_item_id, stock_snapshot, is_matched) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare quote items: %w", err)
	}
	defer stmt.Close()
	for i, l := range quote.Items {
		if _, err := stmt.ExecContext(ctx, quote.ID, i, l.Name, l.Quantity, l.UnitPrice, l.UnitType, l.LinkedStockItemID, l.StockSnapshot, l.IsMatched); err != nil {
			return fmt.Errorf("insert quote item %s: %w", l.Name, err)
		}
	}
	return nil
}

func (r *RequestRepository) attachQuote(ctx context.Context, req *domain.PrescriptionRequest) error {
	var row quoteRow
	q := r.db.Rebind(`SELECT id, request_id, pharmacy_id, pharmacy_name, total_value, note, created_at FROM quotes WHERE request_id = ?`)
	if err := r.db.GetContext(ctx, &row, q, req.ID); err != nil {
		if notFound(err) == ErrNotFound {
			return nil
		}
		return fmt.Errorf("load quote for %s: %w", req.ID, err)
	}
	items := []domain.QuoteLineItem{}
	q = r.db.Rebind(`SELECT name, quantity, unit_price, unit_type, linked_stock_item_id, stock_snapshot, is_matched FROM quote_items WHERE quote_id = ? ORDER BY line_no`)
	if err := r.db.SelectContext(ctx, &items, q, row.ID); err != nil {
		return fmt.Errorf("load quote items for %s: %w", row.ID, err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return fmt.Errorf("quote %s created_at: %w", row.ID, err)
	}
	req.Quote = &domain.Quote{
		ID:           row.ID,
		RequestID:    row.RequestID,
		PharmacyID:   row.PharmacyID,
		PharmacyName: row.PharmacyName,
		Items:        items,
		TotalValue:   row.TotalValue,
		Note:         row.Note,
		CreatedAt:    createdAt,
	}
	return nil
}

func toRow(req domain.PrescriptionRequest) (requestRow, error) {
	row := requestRow{
		ID:               req.ID,
		CustomerID:       req.CustomerID,
		ImageRef:         req.ImageRef,
		TargetPharmacyID: req.TargetPharmacyID,
		Status:           string(req.Status),
		CreatedAt:        formatTime(req.CreatedAt),
		UpdatedAt:        formatTime(req.UpdatedAt),
	}
	if req.AIAnalysis != nil {
		raw, err := json.Marshal(req.AIAnalysis)
		if err != nil {
			return requestRow{}, fmt.Errorf("encode analysis: %w", err)
		}
		row.AIAnalysis = sql.NullString{String: string(raw), Valid: true}
	}
	if len(req.ReviewedItems) > 0 {
		raw, err := json.Marshal(req.ReviewedItems)
		if err != nil {
			return requestRow{}, fmt.Errorf("encode reviewed items: %w", err)
		}
		row.ReviewedItems = sql.NullString{String: string(raw), Valid: true}
	}
	if req.RejectionReason != nil {
		row.RejectionReason = sql.NullString{String: *req.RejectionReason, Valid: true}
	}
	if req.ExpiresAt != nil {
		row.ExpiresAt = sql.NullString{String: formatTime(*req.ExpiresAt), Valid: true}
	}
	return row, nil
}

func fromRow(row requestRow) (domain.PrescriptionRequest, error) {
	req := domain.PrescriptionRequest{
		ID:               row.ID,
		CustomerID:       row.CustomerID,
		ImageRef:         row.ImageRef,
		TargetPharmacyID: row.TargetPharmacyID,
		Status:           domain.Status(row.Status),
	}
	var err error
	if req.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return req, fmt.Errorf("request %s created_at: %w", row.ID, err)
	}
	if req.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return req, fmt.Errorf("request %s updated_at: %w", row.ID, err)
	}
	if row.ExpiresAt.Valid {
		t, err := parseTime(row.ExpiresAt.String)
		if err != nil {
			return req, fmt.Errorf("request %s expires_at: %w", row.ID, err)
		}
		req.ExpiresAt = &t
	}
	if row.AIAnalysis.Valid {
		var a domain.AIAnalysisResult
		if err := json.Unmarshal([]byte(row.AIAnalysis.String), &a); err != nil {
			return req, fmt.Errorf("request %s analysis: %w", row.ID, err)
		}
		req.AIAnalysis = &a
	}
	if row.ReviewedItems.Valid {
		if err := json.Unmarshal([]byte(row.ReviewedItems.String), &req.ReviewedItems); err != nil {
			return req, fmt.Errorf("request %s reviewed items: %w", row.ID, err)
		}
	}
	if row.RejectionReason.Valid {
		reason := row.RejectionReason.String
		req.RejectionReason = &reason
	}
	return req, nil
}
