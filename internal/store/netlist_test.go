package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/testutil"
)

func TestSaveLoadNetlist_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	circ := testutil.FullAdder(t)
	doc := circ.Model.Document()

	if err := s.SaveNetlist(ctx, doc); err != nil {
		t.Fatalf("SaveNetlist() failed: %v", err)
	}
	snap, err := s.LoadNetlist(ctx)
	if err != nil {
		t.Fatalf("LoadNetlist() failed: %v", err)
	}

	if got := snap.Document(); !reflect.DeepEqual(got, doc) {
		t.Errorf("loaded document differs from saved one\n got: %+v\nwant: %+v", got.Stats(), doc.Stats())
	}
}

func TestSaveNetlist_PreservesWidthsAndPositions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := testutil.Register(t, 4).Model.Document()
	doc.Nodes[0].Position = ir.Position{X: -3, Y: 12}

	if err := s.SaveNetlist(ctx, doc); err != nil {
		t.Fatalf("SaveNetlist() failed: %v", err)
	}
	snap, err := s.LoadNetlist(ctx)
	if err != nil {
		t.Fatalf("LoadNetlist() failed: %v", err)
	}

	np, ok := snap.NodePin("Register4/D.In")
	if !ok || np.Width == nil || *np.Width != 4 {
		t.Errorf("width of Register4/D.In not preserved: %+v", np)
	}
	n, _ := snap.Node(doc.Nodes[0].ID)
	if n.Position != (ir.Position{X: -3, Y: 12}) {
		t.Errorf("position = %+v, want {-3 12}", n.Position)
	}
}

func TestSaveNetlist_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveNetlist(ctx, testutil.FullAdder(t).Model.Document()); err != nil {
		t.Fatalf("first SaveNetlist() failed: %v", err)
	}
	want := testutil.AndGate(t).Model.Document()
	if err := s.SaveNetlist(ctx, want); err != nil {
		t.Fatalf("second SaveNetlist() failed: %v", err)
	}

	snap, err := s.LoadNetlist(ctx)
	if err != nil {
		t.Fatalf("LoadNetlist() failed: %v", err)
	}
	if got := snap.Document().Stats(); got != want.Stats() {
		t.Errorf("stats = %+v, want %+v", got, want.Stats())
	}
	if _, ok := snap.Component("FullAdder"); ok {
		t.Error("old netlist still present")
	}
}

func TestSaveNetlist_RejectsInvalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := testutil.AndGate(t).Model.Document()
	doc.Connections = append(doc.Connections, ir.Connection{
		ID:                "dup",
		From:              doc.Connections[0].From,
		To:                doc.Connections[1].To,
		ParentComponentID: doc.Connections[0].ParentComponentID,
	})

	if err := s.SaveNetlist(ctx, doc); err == nil {
		t.Fatal("SaveNetlist() accepted a fan-in violation")
	}
	if _, err := s.LoadNetlist(ctx); !errors.Is(err, ErrNoNetlist) {
		t.Errorf("LoadNetlist() error = %v, want ErrNoNetlist", err)
	}
}

func TestConnections_UniqueDriver(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := testutil.AndGate(t).Model.Document()
	if err := s.SaveNetlist(ctx, doc); err != nil {
		t.Fatalf("SaveNetlist() failed: %v", err)
	}

	c := doc.Connections[0]
	_, err := s.db.Exec(`
		INSERT INTO connections (seq, id, from_pin, to_pin, parent_component_id)
		VALUES (99, 'second-driver', ?, ?, ?)
	`, string(doc.Connections[1].From), string(c.To), string(c.ParentComponentID))
	if err == nil {
		t.Error("second connection to the same input pin was accepted")
	}
}

func TestLoadNetlist_Empty(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.LoadNetlist(context.Background()); !errors.Is(err, ErrNoNetlist) {
		t.Errorf("LoadNetlist() error = %v, want ErrNoNetlist", err)
	}
}
