package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"0", 0, false},
		{"120", 12000, false},
		{"99.99", 9999, false},
		{"0.1", 10, false},
		{"1.005", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyArithmeticStaysExact(t *testing.T) {
	price, err := ParseMoney("0.10")
	require.NoError(t, err)

	var sum Money
	for i := 0; i < 10; i++ {
		sum += price
	}
	assert.Equal(t, "1.00", sum.String())
	got, err := Money(1111).Times(3)
	require.NoError(t, err)
	assert.Equal(t, Money(3333), got)
}

func TestMoneyArithmeticRejectsOverflow(t *testing.T) {
	_, err := Money(1 << 40).Times(1 << 30)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Money(100).Times(-1)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	got, err := MaxMoney.Times(1)
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, got)

	zero, err := MaxMoney.Times(0)
	require.NoError(t, err)
	assert.Equal(t, Money(0), zero)

	_, err = MaxMoney.Plus(1)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	sum, err := (MaxMoney - 1).Plus(1)
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, sum)
}

func TestParseMoneyBounds(t *testing.T) {
	got, err := ParseMoney("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, got)

	_, err = ParseMoney("92233720368547758.08")
	assert.ErrorIs(t, err, ErrAmountOverflow)

	var v struct {
		A Money `json:"a"`
	}
	err = json.Unmarshal([]byte(`{"a": 100000000000000000000}`), &v)
	assert.ErrorIs(t, err, ErrAmountOverflow)
	assert.Equal(t, Money(0), v.A)
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: 120050})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 1200.50}`, string(b))

	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": "7.25"}`), &v))
	assert.Equal(t, Money(1250), v.A)
	assert.Equal(t, Money(725), v.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a": -3}`), &v))
}

func TestItemStatusTransitions(t *testing.T) {
	assert.True(t, ItemStatusPending.CanTransitionTo(ItemStatusSubstitutionOffered))
	assert.True(t, ItemStatusSubstitutionOffered.CanTransitionTo(ItemStatusSubstitutionAccepted))
	assert.False(t, ItemStatusPending.CanTransitionTo(ItemStatusSubstitutionAccepted))
	assert.False(t, ItemStatusSubstitutionRejected.CanTransitionTo(ItemStatusAccepted))
	assert.False(t, ItemStatusRejected.CanTransitionTo(ItemStatusAccepted))
	assert.False(t, ItemStatus("bogus").CanTransitionTo(ItemStatusAccepted))
}

func TestOrderCloneIsDeep(t *testing.T) {
	reason := "r"
	qty := 3
	o := &Order{ID: "o1", StatusReason: &reason, Items: []OrderItem{{ID: "i1", AdjustedQuantity: &qty}}}
	c := o.Clone()

	*c.StatusReason = "changed"
	*c.Items[0].AdjustedQuantity = 9
	c.Items[0].ID = "i2"

	assert.Equal(t, "r", *o.StatusReason)
	assert.Equal(t, 3, *o.Items[0].AdjustedQuantity)
	assert.Equal(t, "i1", o.Items[0].ID)
}
