package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestBoltAppendAndList(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	defer b.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(b, logger.NewNop(), func() time.Time { return at })

	rec.Record(ctx, Event{Type: PoolCreated, Subject: "quiz-1", Actor: alice})
	rec.Record(ctx, Event{Type: PoolCreated, Subject: "quiz-2", Actor: alice})
	rec.Record(ctx, Event{
		Type:    PoolStaked,
		Subject: "quiz-1",
		Actor:   alice,
		Amount:  decimal.RequireFromString("1.25"),
		Data:    map[string]string{"choice": "2"},
	})

	evs, err := b.List(ctx, "quiz-1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, PoolCreated, evs[0].Type)
	assert.Equal(t, uint64(1), evs[0].Seq)
	assert.Equal(t, PoolStaked, evs[1].Type)
	assert.Equal(t, uint64(3), evs[1].Seq)
	assert.Equal(t, alice, evs[1].Actor)
	assert.True(t, evs[1].Amount.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, "2", evs[1].Data["choice"])
	assert.True(t, evs[1].At.Equal(at))
	assert.NotEqual(t, evs[0].ID, evs[1].ID)

	none, err := b.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBoltReopenKeepsEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Append(ctx, Event{Type: RoundCreated, Subject: "r-1"}))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Append(ctx, Event{Type: RoundCommitted, Subject: "r-1"}))

	evs, err := b.List(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, uint64(2), evs[1].Seq)
}

type failingSink struct{ Memory }

func (f *failingSink) Append(context.Context, Event) error { return errors.New("disk full") }

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	rec := NewRecorder(&failingSink{}, logger.NewNop(), nil)
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Event{Type: PoolCancelled, Subject: domain.PoolID("quiz-1")})
	})

	var nilRec *Recorder
	assert.NotPanics(t, func() {
		nilRec.Record(context.Background(), Event{Type: PoolCancelled})
	})
}

func TestMemoryTypes(t *testing.T) {
	m := NewMemory()
	rec := NewRecorder(m, logger.NewNop(), nil)
	rec.Record(context.Background(), Event{Type: PoolCreated, Subject: "quiz-1"})
	rec.Record(context.Background(), Event{Type: PoolStaked, Subject: "quiz-1"})
	assert.Equal(t, []string{PoolCreated, PoolStaked}, m.Types("quiz-1"))
}
