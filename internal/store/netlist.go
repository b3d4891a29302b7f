package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// ErrNoNetlist is returned by LoadNetlist when nothing was saved yet.
var ErrNoNetlist = errors.New("store holds no netlist")

// SaveNetlist replaces the stored netlist with doc in one transaction.
// doc is validated first; an invalid document is never written.
func (s *Store) SaveNetlist(ctx context.Context, doc netlist.Document) error {
	if _, err := netlist.New(doc); err != nil {
		return fmt.Errorf("save netlist: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save netlist: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Children first for foreign keys.
	for _, table := range []string{"connections", "node_pins", "nodes", "component_pins", "components"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save netlist: clear %s: %w", table, err)
		}
	}

	for i, c := range doc.Components {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO components (seq, id, name, is_intrinsic, intrinsic_type)
			VALUES (?, ?, ?, ?, ?)
		`, i, string(c.ID), c.Name, c.IsIntrinsic, string(c.IntrinsicType))
		if err != nil {
			return fmt.Errorf("save netlist: component %s: %w", c.ID, err)
		}
	}
	for i, cp := range doc.ComponentPins {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO component_pins (seq, id, component_id, type, group_name, ord, name, implementation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, i, string(cp.ID), string(cp.ComponentID), string(cp.Type), cp.Group, cp.Order, cp.Name, nullPin(cp.Implementation))
		if err != nil {
			return fmt.Errorf("save netlist: component pin %s: %w", cp.ID, err)
		}
	}
	for i, n := range doc.Nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (seq, id, parent_component_id, component_id, pos_x, pos_y)
			VALUES (?, ?, ?, ?, ?, ?)
		`, i, string(n.ID), string(n.ParentComponentID), string(n.ComponentID), n.Position.X, n.Position.Y)
		if err != nil {
			return fmt.Errorf("save netlist: node %s: %w", n.ID, err)
		}
	}
	for i, np := range doc.NodePins {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO node_pins (seq, id, node_id, component_pin_id, width)
			VALUES (?, ?, ?, ?, ?)
		`, i, string(np.ID), string(np.NodeID), string(np.ComponentPinID), nullWidth(np.Width))
		if err != nil {
			return fmt.Errorf("save netlist: node pin %s: %w", np.ID, err)
		}
	}
	for i, c := range doc.Connections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO connections (seq, id, from_pin, to_pin, parent_component_id)
			VALUES (?, ?, ?, ?, ?)
		`, i, string(c.ID), string(c.From), string(c.To), string(c.ParentComponentID))
		if err != nil {
			return fmt.Errorf("save netlist: connection %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save netlist: commit: %w", err)
	}
	return nil
}

// LoadNetlist reads the stored netlist back in registration order and
// validates it. Returns ErrNoNetlist if the store is empty.
func (s *Store) LoadNetlist(ctx context.Context) (*netlist.Snapshot, error) {
	doc, err := s.readDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("load netlist: %w", err)
	}
	if len(doc.Components) == 0 {
		return nil, ErrNoNetlist
	}
	snap, err := netlist.New(doc)
	if err != nil {
		return nil, fmt.Errorf("load netlist: %w", err)
	}
	return snap, nil
}

func (s *Store) readDocument(ctx context.Context) (netlist.Document, error) {
	var doc netlist.Document
	var err error

	doc.Components, err = queryAll(ctx, s.db, `
		SELECT id, name, is_intrinsic, intrinsic_type
		FROM components ORDER BY seq ASC
	`, func(rows *sql.Rows) (ir.Component, error) {
		var c ir.Component
		var id, typ string
		err := rows.Scan(&id, &c.Name, &c.IsIntrinsic, &typ)
		c.ID, c.IntrinsicType = ir.ComponentID(id), ir.IntrinsicType(typ)
		return c, err
	})
	if err != nil {
		return doc, fmt.Errorf("components: %w", err)
	}

	doc.ComponentPins, err = queryAll(ctx, s.db, `
		SELECT id, component_id, type, group_name, ord, name, implementation
		FROM component_pins ORDER BY seq ASC
	`, func(rows *sql.Rows) (ir.ComponentPin, error) {
		var cp ir.ComponentPin
		var id, comp, typ string
		var impl sql.NullString
		err := rows.Scan(&id, &comp, &typ, &cp.Group, &cp.Order, &cp.Name, &impl)
		cp.ID, cp.ComponentID, cp.Type = ir.ComponentPinID(id), ir.ComponentID(comp), ir.PinType(typ)
		if impl.Valid {
			cp.Implementation = ir.PinIDRef(ir.NodePinID(impl.String))
		}
		return cp, err
	})
	if err != nil {
		return doc, fmt.Errorf("component pins: %w", err)
	}

	doc.Nodes, err = queryAll(ctx, s.db, `
		SELECT id, parent_component_id, component_id, pos_x, pos_y
		FROM nodes ORDER BY seq ASC
	`, func(rows *sql.Rows) (ir.Node, error) {
		var n ir.Node
		var id, parent, comp string
		err := rows.Scan(&id, &parent, &comp, &n.Position.X, &n.Position.Y)
		n.ID, n.ParentComponentID, n.ComponentID = ir.NodeID(id), ir.ComponentID(parent), ir.ComponentID(comp)
		return n, err
	})
	if err != nil {
		return doc, fmt.Errorf("nodes: %w", err)
	}

	doc.NodePins, err = queryAll(ctx, s.db, `
		SELECT id, node_id, component_pin_id, width
		FROM node_pins ORDER BY seq ASC
	`, func(rows *sql.Rows) (ir.NodePin, error) {
		var np ir.NodePin
		var id, node, cp string
		var width sql.NullInt64
		err := rows.Scan(&id, &node, &cp, &width)
		np.ID, np.NodeID, np.ComponentPinID = ir.NodePinID(id), ir.NodeID(node), ir.ComponentPinID(cp)
		if width.Valid {
			np.Width = ir.WidthRef(int(width.Int64))
		}
		return np, err
	})
	if err != nil {
		return doc, fmt.Errorf("node pins: %w", err)
	}

	doc.Connections, err = queryAll(ctx, s.db, `
		SELECT id, from_pin, to_pin, parent_component_id
		FROM connections ORDER BY seq ASC
	`, func(rows *sql.Rows) (ir.Connection, error) {
		var c ir.Connection
		var id, from, to, parent string
		err := rows.Scan(&id, &from, &to, &parent)
		c.ID, c.From, c.To, c.ParentComponentID = ir.ConnectionID(id), ir.NodePinID(from), ir.NodePinID(to), ir.ComponentID(parent)
		return c, err
	})
	if err != nil {
		return doc, fmt.Errorf("connections: %w", err)
	}
	return doc, nil
}

// queryAll runs query and scans every row with scan.
// Returns an empty slice (not nil) when there are no rows.
func queryAll[T any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func nullPin(p *ir.NodePinID) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullWidth(w *int) sql.NullInt64 {
	if w == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*w), Valid: true}
}
