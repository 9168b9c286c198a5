package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"notitrade/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		content TEXT NOT NULL,
		sender VARCHAR(128) NOT NULL DEFAULT '',
		payload JSON NOT NULL,
		received_at DATETIME(3) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL DEFAULT '',
		client_order_id BIGINT NOT NULL,
		message_id VARCHAR(64) NOT NULL,
		contract_code VARCHAR(32) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		position_offset VARCHAR(8) NOT NULL,
		volume DECIMAL(36, 18) NOT NULL,
		lever_rate INT NOT NULL,
		price_type VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		reason TEXT NOT NULL,
		timestamp DATETIME(3) NOT NULL
	)`,
}

type DB struct {
	*sql.DB
}

func NewConnection(databaseURL string) (*DB, error) {
	db, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// Migrate creates the audit tables when they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate schema")
		}
	}
	return nil
}

// SaveNotification stores the raw ingress body verbatim.
func (db *DB) SaveNotification(ctx context.Context, n *models.RawNotification) error {
	payload := n.Body
	if len(payload) == 0 {
		var err error
		payload, err = json.Marshal(n.Fields)
		if err != nil {
			return errors.Wrap(err, "failed to marshal notification")
		}
	}

	query := `INSERT INTO notifications (content, sender, payload, received_at) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, n.Content, n.Sender, string(payload), n.ReceivedAt.UTC())
	return errors.Wrap(err, "failed to save notification")
}

func (db *DB) SaveOrder(ctx context.Context, order *models.Order) error {
	query := `INSERT INTO orders (order_id, client_order_id, message_id, contract_code, direction, position_offset, volume, lever_rate, price_type, status, reason, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, query,
		order.OrderID,
		strconv.FormatUint(order.ClientOrderID, 10),
		order.MessageID,
		order.ContractCode,
		string(order.Direction),
		string(order.Offset),
		order.Volume.String(),
		order.LeverRate,
		order.PriceType,
		string(order.Status),
		order.Reason,
		order.Timestamp.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save order")
	}

	if id, err := res.LastInsertId(); err == nil {
		order.ID = id
	}
	return nil
}
