package jsonl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/txn-engine/internal/model"
)

func TestImporter(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"deposit","client":1,"tx":1,"amount":"1.5"}`,
		``,
		`{"type":"Withdrawal","client":1,"tx":2,"amount":0.25}`,
		`  {"type":"dispute","client":1,"tx":1}  `,
		`{"type":"resolve","client":1,"tx":1,"amount":null}`,
	}, "\n")

	imp, err := NewImporter(strings.NewReader(input))
	require.NoError(t, err)
	var txs []model.Transaction
	for {
		tx, err := imp.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		txs = append(txs, tx)
	}

	require.Len(t, txs, 4)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, model.TypeWithdrawal, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, model.TypeDispute, txs[2].Type)
	assert.Nil(t, txs[2].Amount)
	assert.Nil(t, txs[3].Amount)
}

func TestImporter_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `deposit,1,1,1.0`,
		"unknown type":   `{"type":"refund","client":1,"tx":1}`,
		"missing client": `{"type":"deposit","tx":1,"amount":"1"}`,
		"missing tx":     `{"type":"deposit","client":1,"amount":"1"}`,
		"client range":   `{"type":"deposit","client":70000,"tx":1,"amount":"1"}`,
		"bad amount":     `{"type":"deposit","client":1,"tx":1,"amount":"1,5"}`,
		"string client":  `{"type":"deposit","client":"1","tx":1,"amount":"1"}`,
		"amount object":  `{"type":"deposit","client":1,"tx":1,"amount":{"v":1}}`,
		"tx fraction":    `{"type":"deposit","client":1,"tx":1.5,"amount":"1"}`,
	}

	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			imp, err := NewImporter(strings.NewReader("\n" + line + "\n"))
			require.NoError(t, err)
			_, err = imp.Next()
			require.Error(t, err)
			assert.NotErrorIs(t, err, io.EOF)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewExporter(&buf)
	ctx := context.Background()

	require.NoError(t, exp.Export(ctx, model.Snapshot{
		ClientID:  4,
		Available: decimal.RequireFromString("1.5"),
		Held:      decimal.NewFromInt(2),
		Total:     decimal.RequireFromString("3.5"),
		Locked:    true,
	}))
	assert.Empty(t, buf.String(), "output is buffered until flush")
	require.NoError(t, exp.Flush(ctx))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, float64(4), got["client"])
	assert.Equal(t, "1.5000", got["available"])
	assert.Equal(t, "2.0000", got["held"])
	assert.Equal(t, "3.5000", got["total"])
	assert.Equal(t, true, got["locked"])
}
