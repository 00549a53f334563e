package orders

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrisk/internal/fetcher"
	"github.com/sells-group/orderrisk/internal/model"
)

const header = "order_id,customer_id,restaurant_name,cuisine_type,cost_of_the_order,day_of_the_week,rating,food_preparation_time,delivery_time"

func TestParse(t *testing.T) {
	input := header + "\n" +
		"1477147,337525,Hangawi,Korean,30.75,Weekend,Not given,25,20\n" +
		"1477685,358141,\"Joe's Pizza - CLOSED\",Italian,12.08,Weekend,5,25,23\n" +
		"1477070,66393,Cafe Habana,Mexican,abc,Weekday,3,23,28\n" +
		"1477334,106968,Blue Ribbon Fried Chicken,American,-1,Weekend,Not given,25,15\n" +
		"1478249,76942, \"Dirty Bird to-go\" ,American,  9.12 ,Weekday,4,20,24\n"

	set, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, set.Orders, 3)
	assert.False(t, set.HasDates)

	first := set.Orders[0]
	assert.Equal(t, "1477147", first.OrderID)
	assert.Equal(t, "Hangawi", first.RestaurantName)
	assert.True(t, decimal.RequireFromString("30.75").Equal(first.Cost))
	assert.Nil(t, first.Rating)
	assert.Equal(t, 25, first.PrepMinutes)
	assert.Equal(t, 20, first.DeliveryMinutes)
	assert.Nil(t, first.OrderDate)

	second := set.Orders[1]
	assert.Equal(t, "Joe's Pizza - CLOSED", second.RestaurantName)
	require.NotNil(t, second.Rating)
	assert.Equal(t, 5, *second.Rating)

	assert.Equal(t, "Dirty Bird to-go", set.Orders[2].RestaurantName)
	assert.True(t, decimal.RequireFromString("9.12").Equal(set.Orders[2].Cost))
}

func TestParseWithOrderDate(t *testing.T) {
	input := header + ",order_date\n" +
		"1,1,A,Thai,10,Weekday,4,20,20,2024-03-01\n" +
		"2,1,B,Thai,11,Weekday,4,20,20,\n" +
		"3,1,C,Thai,12,Weekday,4,20,20,03/15/2024\n" +
		"4,1,D,Thai,13,Weekday,4,20,20,not a date\n"

	set, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, set.Orders, 4)
	assert.True(t, set.HasDates)

	require.NotNil(t, set.Orders[0].OrderDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *set.Orders[0].OrderDate)
	assert.Nil(t, set.Orders[1].OrderDate)
	require.NotNil(t, set.Orders[2].OrderDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *set.Orders[2].OrderDate)
	assert.Nil(t, set.Orders[3].OrderDate)
}

func TestParseMissingColumns(t *testing.T) {
	input := "order_id,restaurant_name,cost_of_the_order\n1,A,10\n"
	_, err := Parse(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "customer_id")
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}

func TestParseHeaderOnly(t *testing.T) {
	set, err := Parse(context.Background(), strings.NewReader(header+"\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "food_order.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"\n1,1,Hangawi,Korean,30.75,Weekend,5,25,20\n"), 0o644))

	set, err := Load(context.Background(), fetcher.Opener{}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

type failingOpener struct{ err error }

func (f failingOpener) Open(context.Context, string) (io.ReadCloser, error) { return nil, f.err }

func TestLoadUnavailable(t *testing.T) {
	_, err := Load(context.Background(), failingOpener{err: io.ErrUnexpectedEOF}, "http://example.com/orders.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	_, err = Load(context.Background(), fetcher.Opener{}, path)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}
