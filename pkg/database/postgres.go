package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

// Database is the postgres-backed Store. Documents live in jsonb with hot
// fields mirrored into columns; assignment transitions run in a transaction
// with the order row locked, so the order-state/workload pair commits as one
// unit and concurrent accept/timeout serialize on the row lock.
type Database struct {
	DB *pgxpool.Pool
}

func NewPGDatabase(ctx context.Context) (*Database, error) {
	dbConn, err := pgxpool.New(ctx, utils.GetEnv("PGSQL_URL", ""))
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to Postgres DB: %w", err)
	}

	d := &Database{DB: dbConn}
	if err := d.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) ensureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		status TEXT NOT NULL,
		assignment_status TEXT NOT NULL,
		candidate_vendor_id TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_orders_assignment_status ON orders(assignment_status);

	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		workload BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS price_rules (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload BYTEA NOT NULL,
		topic TEXT NOT NULL,
		published BOOLEAN NOT NULL DEFAULT FALSE
	);`

	if _, err := d.DB.Exec(ctx, schema); err != nil {
		return dbError("Database.EnsureSchema", err)
	}
	return nil
}

func dbError(op string, err error) error {
	return svcerror.New(
		svcerror.ErrDatabaseError,
		svcerror.WithOp(op),
		svcerror.WithCause(err),
		svcerror.WithTime(time.Now().UTC()),
	)
}

// ORDERS

func (d *Database) SaveOrder(ctx context.Context, order models.Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return dbError("Database.SaveOrder", err)
	}

	query := `INSERT INTO orders(id, doc, status, assignment_status, candidate_vendor_id, updated_at)
			  VALUES($1, $2, $3, $4, NULLIF($5, ''), $6)
			  ON CONFLICT(id) DO UPDATE SET
			  doc = EXCLUDED.doc, status = EXCLUDED.status,
			  assignment_status = EXCLUDED.assignment_status,
			  candidate_vendor_id = EXCLUDED.candidate_vendor_id,
			  updated_at = EXCLUDED.updated_at;`
	_, err = d.DB.Exec(ctx, query,
		order.OrderId, doc, string(order.Status),
		string(order.Assignment.Status), order.Assignment.CandidateVendorId,
		order.UpdatedAt)
	if err != nil {
		return dbError("Database.SaveOrder", err)
	}
	return nil
}

func (d *Database) GetOrder(ctx context.Context, orderId string) (models.Order, error) {
	var doc []byte
	row := d.DB.QueryRow(ctx, `SELECT doc FROM orders WHERE id = $1;`, orderId)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, notFound("Database.GetOrder", orderId)
		}
		return models.Order{}, dbError("Database.GetOrder", err)
	}

	var order models.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return models.Order{}, dbError("Database.GetOrder", err)
	}
	return order, nil
}

func (d *Database) UpdateOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, change models.StatusChange) error {
	return d.mutateOrder(ctx, "Database.UpdateOrderStatus", orderId, func(order *models.Order) error {
		order.Status = status
		order.StatusHistory = append(order.StatusHistory, change)
		order.UpdatedAt = change.At
		return nil
	})
}

func (d *Database) UpdateOrderTotals(ctx context.Context, orderId string, deliveryCharge, total float64) error {
	return d.mutateOrder(ctx, "Database.UpdateOrderTotals", orderId, func(order *models.Order) error {
		order.DeliveryCharge = deliveryCharge
		order.Total = total
		return nil
	})
}

func (d *Database) ListManualRequired(ctx context.Context) ([]models.Order, error) {
	query := `SELECT doc FROM orders WHERE assignment_status = $1 ORDER BY id;`
	rows, err := d.DB.Query(ctx, query, string(models.ASSIGNMENT_STATUS_MANUAL_REQUIRED))
	if err != nil {
		return nil, dbError("Database.ListManualRequired", err)
	}
	defer rows.Close()

	var parked []models.Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, dbError("Database.ListManualRequired", err)
		}
		var order models.Order
		if err := json.Unmarshal(doc, &order); err != nil {
			return nil, dbError("Database.ListManualRequired", err)
		}
		parked = append(parked, order)
	}
	return parked, rows.Err()
}

// mutateOrder rewrites the order document under a row lock.
func (d *Database) mutateOrder(ctx context.Context, op, orderId string, mutate func(*models.Order) error) error {
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return err
	}
	if err := mutate(&order); err != nil {
		return err
	}
	if err := writeOrder(ctx, tx, op, order); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbError(op, err)
	}
	return nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, op, orderId string) (models.Order, error) {
	var doc []byte
	row := tx.QueryRow(ctx, `SELECT doc FROM orders WHERE id = $1 FOR UPDATE;`, orderId)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, notFound(op, orderId)
		}
		return models.Order{}, dbError(op, err)
	}

	var order models.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return models.Order{}, dbError(op, err)
	}
	return order, nil
}

func writeOrder(ctx context.Context, tx pgx.Tx, op string, order models.Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return dbError(op, err)
	}
	query := `UPDATE orders
			  SET doc = $1, status = $2, assignment_status = $3,
			      candidate_vendor_id = NULLIF($4, ''), updated_at = $5
			  WHERE id = $6;`
	_, err = tx.Exec(ctx, query,
		doc, string(order.Status), string(order.Assignment.Status),
		order.Assignment.CandidateVendorId, order.UpdatedAt, order.OrderId)
	if err != nil {
		return dbError(op, err)
	}
	return nil
}

// VENDORS

func (d *Database) SaveVendor(ctx context.Context, vendor models.Vendor) error {
	doc, err := json.Marshal(vendor)
	if err != nil {
		return dbError("Database.SaveVendor", err)
	}

	query := `INSERT INTO vendors(id, doc, workload, updated_at)
			  VALUES($1, $2, $3, now())
			  ON CONFLICT(id) DO UPDATE SET
			  doc = EXCLUDED.doc, workload = EXCLUDED.workload, updated_at = now();`
	if _, err := d.DB.Exec(ctx, query, vendor.VendorId, doc, vendor.CurrentWorkload); err != nil {
		return dbError("Database.SaveVendor", err)
	}
	return nil
}

func (d *Database) GetVendor(ctx context.Context, vendorId string) (models.Vendor, error) {
	var doc []byte
	var workload int64
	row := d.DB.QueryRow(ctx, `SELECT doc, workload FROM vendors WHERE id = $1;`, vendorId)
	if err := row.Scan(&doc, &workload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Vendor{}, notFound("Database.GetVendor", vendorId)
		}
		return models.Vendor{}, dbError("Database.GetVendor", err)
	}

	var vendor models.Vendor
	if err := json.Unmarshal(doc, &vendor); err != nil {
		return models.Vendor{}, dbError("Database.GetVendor", err)
	}
	// the workload column is authoritative under concurrent increments
	vendor.CurrentWorkload = workload
	return vendor, nil
}

func (d *Database) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	rows, err := d.DB.Query(ctx, `SELECT doc, workload FROM vendors ORDER BY id;`)
	if err != nil {
		return nil, dbError("Database.ListVendors", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var doc []byte
		var workload int64
		if err := rows.Scan(&doc, &workload); err != nil {
			return nil, dbError("Database.ListVendors", err)
		}
		var vendor models.Vendor
		if err := json.Unmarshal(doc, &vendor); err != nil {
			return nil, dbError("Database.ListVendors", err)
		}
		vendor.CurrentWorkload = workload
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}

func (d *Database) AdjustVendorWorkload(ctx context.Context, vendorId string, delta int64) error {
	return adjustWorkload(ctx, d.DB, vendorId, delta)
}

type pgxExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// adjustWorkload is a single-statement atomic increment, never a
// read-modify-write from the caller. Works on the pool or inside a tx.
func adjustWorkload(ctx context.Context, db pgxExecer, vendorId string, delta int64) error {
	query := `UPDATE vendors SET workload = GREATEST(workload + $1, 0), updated_at = now() WHERE id = $2;`
	tag, err := db.Exec(ctx, query, delta, vendorId)
	if err != nil {
		return dbError("Database.AdjustVendorWorkload", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("Database.AdjustVendorWorkload", vendorId)
	}
	return nil
}
