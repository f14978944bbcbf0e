package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in    string
		want  time.Time
		valid bool
	}{
		{"2021-11-27T20:29:54+05:30", time.Date(2021, 11, 27, 14, 59, 54, 0, time.UTC), true},
		{"2022-03-01T00:00:00Z", time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2022-03-01T10:11:12", time.Date(2022, 3, 1, 10, 11, 12, 0, time.UTC), true},
		{"2022-03-01", time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d, err := ParseDate(tc.in)
			if !tc.valid {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDate))
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(d.Time), "got %v", d.Time)
		})
	}
}

func TestOffsetCanShiftMonth(t *testing.T) {
	d, err := ParseDate("2022-04-01T02:00:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Month())
}

func TestDateJSON(t *testing.T) {
	d := Date{Time: time.Date(2021, 11, 27, 14, 59, 54, 0, time.UTC)}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2021-11-27T14:59:54.000Z"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back.Time))

	b, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:                 1,
		DateOfSale:         NewDate(2022, 3, 10),
		ProductTitle:       "Blue Shirt",
		ProductDescription: "cotton",
		Price:              10,
		Category:           "men's clothing",
	}
	require.NoError(t, good.Validate())

	bad := []func(*Transaction){
		func(tx *Transaction) { tx.DateOfSale = Date{} },
		func(tx *Transaction) { tx.ProductTitle = " " },
		func(tx *Transaction) { tx.ProductDescription = "" },
		func(tx *Transaction) { tx.Category = "" },
	}
	for i, mutate := range bad {
		tx := good
		mutate(&tx)
		err := tx.Validate()
		if assert.Error(t, err, "case %d", i) {
			assert.True(t, errors.Is(err, ErrInvalidRecord), "case %d", i)
		}
	}
}
