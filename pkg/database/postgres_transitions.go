package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

// Assignment transitions. Each runs in one transaction with the order row
// locked: the compare-and-set against the prior assignment state and the
// vendor workload adjustment either both commit or neither does.

func (d *Database) TentativelyAssign(ctx context.Context, orderId, vendorId string, pendingSince, timeoutAt time.Time) error {
	op := "Database.TentativelyAssign"
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return err
	}

	switch order.Assignment.Status {
	case models.ASSIGNMENT_STATUS_PENDING, models.ASSIGNMENT_STATUS_ACCEPTED:
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s already %s", orderId, order.Assignment.Status)),
		)
	}
	if order.Status == models.ORDER_STATUS_CANCELLED {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is cancelled", orderId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_PENDING
	order.Assignment.CandidateVendorId = vendorId
	order.Assignment.PendingSince = pendingSince
	order.Assignment.TimeoutAt = timeoutAt
	if !order.Assignment.Tried(vendorId) {
		order.Assignment.AttemptedVendorIds = append(order.Assignment.AttemptedVendorIds, vendorId)
	}
	order.UpdatedAt = pendingSince

	if err := writeOrder(ctx, tx, op, order); err != nil {
		return err
	}
	if err := adjustWorkload(ctx, tx, vendorId, +1); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbError(op, err)
	}
	return nil
}

func (d *Database) AcceptAssignment(ctx context.Context, orderId, vendorId string, now time.Time) error {
	op := "Database.AcceptAssignment"
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return err
	}

	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s not pending for vendor %s", orderId, vendorId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_ACCEPTED
	order.Status = models.ORDER_STATUS_ASSIGNED
	order.StatusHistory = append(order.StatusHistory, models.StatusChange{
		Status: models.ORDER_STATUS_ASSIGNED,
		By:     vendorId,
		Note:   "Vendor accepted order",
		At:     now,
	})
	order.UpdatedAt = now

	if err := writeOrder(ctx, tx, op, order); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbError(op, err)
	}
	return nil
}

func (d *Database) DeclineAssignment(ctx context.Context, orderId, vendorId, reason string, now time.Time) (models.Order, error) {
	op := "Database.DeclineAssignment"
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return models.Order{}, dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return models.Order{}, err
	}

	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return models.Order{}, svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s not pending for vendor %s", orderId, vendorId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_TIMED_OUT
	order.Assignment.CandidateVendorId = ""
	order.Assignment.ReassignmentAttempts++
	order.Assignment.DeclineReason = reason
	order.UpdatedAt = now

	if err := writeOrder(ctx, tx, op, order); err != nil {
		return models.Order{}, err
	}
	if err := adjustWorkload(ctx, tx, vendorId, -1); err != nil {
		return models.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, dbError(op, err)
	}
	return order, nil
}

func (d *Database) ExpireAssignment(ctx context.Context, orderId, vendorId string, now time.Time) (models.Order, bool, error) {
	op := "Database.ExpireAssignment"
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return models.Order{}, false, dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return models.Order{}, false, err
	}

	// stale timer: the order moved on while the timer was in flight
	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return order, false, nil
	}
	if order.Status == models.ORDER_STATUS_CANCELLED {
		return order, false, nil
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_TIMED_OUT
	order.Assignment.CandidateVendorId = ""
	order.Assignment.ReassignmentAttempts++
	order.UpdatedAt = now

	if err := writeOrder(ctx, tx, op, order); err != nil {
		return models.Order{}, false, err
	}
	if err := adjustWorkload(ctx, tx, vendorId, -1); err != nil {
		return models.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, false, dbError(op, err)
	}
	return order, true, nil
}

func (d *Database) MarkManualRequired(ctx context.Context, orderId string, now time.Time) error {
	return d.mutateOrder(ctx, "Database.MarkManualRequired", orderId, func(order *models.Order) error {
		order.Assignment.Status = models.ASSIGNMENT_STATUS_MANUAL_REQUIRED
		order.Assignment.CandidateVendorId = ""
		order.UpdatedAt = now
		return nil
	})
}

func (d *Database) ReleaseCancelled(ctx context.Context, orderId, reason string, now time.Time) error {
	op := "Database.ReleaseCancelled"
	tx, err := d.DB.Begin(ctx)
	if err != nil {
		return dbError(op, err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, op, orderId)
	if err != nil {
		return err
	}

	holder := ""
	if order.Assignment.Status == models.ASSIGNMENT_STATUS_PENDING {
		holder = order.Assignment.CandidateVendorId
	}

	order.Status = models.ORDER_STATUS_CANCELLED
	order.Assignment.Status = models.ASSIGNMENT_STATUS_UNASSIGNED
	order.Assignment.CandidateVendorId = ""
	order.StatusHistory = append(order.StatusHistory, models.StatusChange{
		Status: models.ORDER_STATUS_CANCELLED,
		By:     "customer",
		Note:   reason,
		At:     now,
	})
	order.UpdatedAt = now

	if err := writeOrder(ctx, tx, op, order); err != nil {
		return err
	}
	if holder != "" {
		if err := adjustWorkload(ctx, tx, holder, -1); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return dbError(op, err)
	}
	return nil
}

// PRICE RULES

func (d *Database) SaveRule(ctx context.Context, rule models.PriceRule) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return dbError("Database.SaveRule", err)
	}

	query := `INSERT INTO price_rules(id, doc, created_at)
			  VALUES($1, $2, $3)
			  ON CONFLICT(id) DO UPDATE SET doc = EXCLUDED.doc;`
	if _, err := d.DB.Exec(ctx, query, rule.RuleId, doc, rule.CreatedAt); err != nil {
		return dbError("Database.SaveRule", err)
	}
	return nil
}

func (d *Database) ListRules(ctx context.Context) ([]models.PriceRule, error) {
	rows, err := d.DB.Query(ctx, `SELECT doc FROM price_rules;`)
	if err != nil {
		return nil, dbError("Database.ListRules", err)
	}
	defer rows.Close()

	var rules []models.PriceRule
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, dbError("Database.ListRules", err)
		}
		var rule models.PriceRule
		if err := json.Unmarshal(doc, &rule); err != nil {
			return nil, dbError("Database.ListRules", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// OUTBOX

func (d *Database) SaveOutbox(ctx context.Context, outbox Outbox) error {
	query := `INSERT INTO outbox(id, key, event_type, payload, topic)
			  VALUES ($1, $2, $3, $4, $5);`
	_, err := d.DB.Exec(ctx, query,
		outbox.Id, outbox.Key, outbox.EventType, outbox.Payload, outbox.Topic,
	)
	if err != nil {
		return dbError("Database.SaveOutbox", err)
	}
	return nil
}

func (d *Database) GetUnpublishedOutbox(ctx context.Context, limit int, topic string) ([]Outbox, error) {
	query := `SELECT id, key, event_type, payload
			  FROM outbox
			  WHERE published = FALSE AND topic = $1
			  LIMIT $2 FOR UPDATE SKIP LOCKED;`
	rows, err := d.DB.Query(ctx, query, topic, limit)
	if err != nil {
		return nil, dbError("Database.GetUnpublishedOutbox", err)
	}
	defer rows.Close()

	var batch []Outbox
	for rows.Next() {
		var outbox Outbox
		if err := rows.Scan(&outbox.Id, &outbox.Key, &outbox.EventType, &outbox.Payload); err != nil {
			return nil, dbError("Database.GetUnpublishedOutbox", err)
		}
		batch = append(batch, outbox)
	}

	return batch, rows.Err()
}

func (d *Database) UpdateOutboxPublished(ctx context.Context, ids []string) error {
	query := `UPDATE outbox SET published = TRUE WHERE id = ANY($1::text[]);`
	if _, err := d.DB.Exec(ctx, query, ids); err != nil {
		return dbError("Database.UpdateOutboxPublished", err)
	}
	return nil
}

var _ Store = (*Database)(nil)
var _ Store = (*MemoryStore)(nil)
