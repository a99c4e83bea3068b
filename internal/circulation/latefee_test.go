// internal/circulation/latefee_test.go
package circulation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"circulib/internal/store"
)

func TestFeeForDays(t *testing.T) {
	testCases := []struct {
		daysOverdue int
		expectedFee float64
	}{
		{0, 0.00},
		{1, 0.50},
		{3, 1.50},
		{7, 3.50},
		{8, 4.50},
		{10, 6.50},
		{18, 14.50},
		{19, 15.00},
		{60, 15.00},
	}

	for _, tt := range testCases {
		assert.Equal(t, tt.expectedFee, feeForDays(tt.daysOverdue), "days overdue %d", tt.daysOverdue)
	}
}

func TestFeeForDaysProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		days := rapid.IntRange(0, 10_000).Draw(t, "days")
		fee := feeForDays(days)

		if fee < 0 {
			t.Fatalf("fee %f is negative", fee)
		}
		if fee > MaxLateFee {
			t.Fatalf("fee %f exceeds cap", fee)
		}
		if next := feeForDays(days + 1); next < fee {
			t.Fatalf("fee not monotone: %d days -> %f, %d days -> %f", days, fee, days+1, next)
		}
		if math.Round(fee*100) != fee*100 {
			t.Fatalf("fee %f has sub-cent precision", fee)
		}

		firstWeek := math.Min(float64(days), FirstWeekDays)
		remaining := math.Max(0, float64(days)-FirstWeekDays)
		expected := math.Min(firstWeek*FirstWeekDailyFee+remaining*LaterDailyFee, MaxLateFee)
		if fee != math.Round(expected*100)/100 {
			t.Fatalf("fee for %d days: got %f, want %f", days, fee, expected)
		}
	})
}

func TestFeeForRecordFloorsPartialDays(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name     string
		dueDate  time.Time
		wantDays int
		wantFee  float64
	}{
		{"due in the future", now.Add(72 * time.Hour), 0, 0},
		{"due right now", now, 0, 0},
		{"23 hours past due counts as zero days", now.Add(-23 * time.Hour), 0, 0},
		{"25 hours past due counts as one day", now.Add(-25 * time.Hour), 1, 0.50},
		{"just under three days", now.Add(-71 * time.Hour), 2, 1.00},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := store.BorrowRecord{DueDate: tt.dueDate}
			result := feeForRecord(rec, now)
			assert.Equal(t, tt.wantDays, result.DaysOverdue)
			assert.Equal(t, tt.wantFee, result.FeeAmount)
		})
	}
}

func TestCalculateLateFeeStatuses(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st)
	ctx := context.Background()

	book := addBook(t, st, "Book Alpha", "1000000000001", 2)

	t.Run("no active borrow", func(t *testing.T) {
		fee, err := svc.CalculateLateFee(ctx, "123456", book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, fee.FeeAmount)
		assert.Equal(t, 0, fee.DaysOverdue)
		assert.Equal(t, "No active borrow found for this patron and book.", fee.Status)
	})

	t.Run("on time", func(t *testing.T) {
		seedBorrow(t, st, "123456", book.ID, 2)
		fee, err := svc.CalculateLateFee(ctx, "123456", book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, fee.FeeAmount)
		assert.Equal(t, "Book returned on time.", fee.Status)
	})

	t.Run("overdue", func(t *testing.T) {
		seedBorrow(t, st, "654321", book.ID, 24) // 10 days overdue
		fee, err := svc.CalculateLateFee(ctx, "654321", book.ID)
		require.NoError(t, err)
		assert.Equal(t, 6.50, fee.FeeAmount)
		assert.Equal(t, 10, fee.DaysOverdue)
		assert.Equal(t, "Book is overdue.", fee.Status)
	})

	t.Run("calculation does not mutate", func(t *testing.T) {
		before, err := st.FindActiveBorrow(ctx, "654321", book.ID)
		require.NoError(t, err)

		_, err = svc.CalculateLateFee(ctx, "654321", book.ID)
		require.NoError(t, err)

		after, err := st.FindActiveBorrow(ctx, "654321", book.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}
