package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileHeaderCollision(t *testing.T) {
	ref := Matrix{{"A", "B"}}
	src := Matrix{{"B", "C"}}

	got := Reconcile(ref, src)

	assert.Equal(t, []string{"A", "B", "B" + OCRSuffix, "C"}, got.Headers)
}

func TestReconcileRowAlignmentIsPositional(t *testing.T) {
	ref := Matrix{
		{"品名", "数量"},
		{"パン", "5"},
	}
	src := Matrix{
		{"メーカー"},
		{"A社"},
		{"B社"},
		{"C社"},
	}

	got := Reconcile(ref, src)

	require.Len(t, got.Rows, 3)
	assert.Equal(t, []string{"パン", "5", "A社"}, got.Rows[0])
	assert.Equal(t, []string{"", "", "B社"}, got.Rows[1])
	assert.Equal(t, []string{"", "", "C社"}, got.Rows[2])
}

func TestReconcileEndToEnd(t *testing.T) {
	ref := Matrix{{"Name", "Qty"}, {"Widget", "5"}}
	src := Matrix{{"Name", "Maker"}, {"Gadget", "Acme"}}

	got := Reconcile(ref, src)

	assert.Equal(t, []string{"Name", "Qty", "Name_OCR", "Maker"}, got.Headers)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"Widget", "5", "Gadget", "Acme"}, got.Rows[0])
}

func TestReconcileClipsAndPadsRaggedRows(t *testing.T) {
	ref := Matrix{
		{"A", "B"},
		{"1", "2", "overflow"},
	}
	src := Matrix{
		{"C"},
		{},
	}

	got := Reconcile(ref, src)

	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"1", "2", ""}, got.Rows[0])
}

func TestReconcileEmptySides(t *testing.T) {
	src := Matrix{{"A"}, {"1"}}

	onlySrc := Reconcile(nil, src)
	assert.Equal(t, []string{"A"}, onlySrc.Headers)
	assert.Equal(t, [][]string{{"1"}}, onlySrc.Rows)

	onlyRef := Reconcile(src, nil)
	assert.Equal(t, []string{"A"}, onlyRef.Headers)
	assert.Equal(t, [][]string{{"1"}}, onlyRef.Rows)

	empty := Reconcile(nil, nil)
	assert.Empty(t, empty.Headers)
	assert.Empty(t, empty.Rows)
}
