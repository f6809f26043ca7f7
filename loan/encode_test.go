package loan_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/loan"
)

func sampleBook(t *testing.T) *loan.Book {
	t.Helper()
	book := &loan.Book{}
	c, err := loan.RegisterClient(book, "Ana", "555-0101")
	require.NoError(t, err)
	l, err := loan.RegisterLoan(c, dec("1000.50"), 10, march1)
	require.NoError(t, err)
	p, err := loan.RegisterPayment(l, dec("100.25"), march1.AddDays(7))
	require.NoError(t, err)
	_, err = loan.ReversePayment(l, p.ID, march1.AddDays(8), "bounced")
	require.NoError(t, err)
	_, err = loan.RegisterClient(book, "Luis", "")
	require.NoError(t, err)
	return book
}

func TestEncodeDecode_PreservesBook(t *testing.T) {
	book := sampleBook(t)

	var buf bytes.Buffer
	require.NoError(t, loan.EncodeBook(&buf, book))
	got, err := loan.DecodeBook(&buf)
	require.NoError(t, err)

	require.Len(t, got.Clients, 2)
	a, b := book.Clients[0], got.Clients[0]
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Phone, b.Phone)
	require.Len(t, b.Loans, 1)
	assert.True(t, a.Loans[0].Principal.Equal(b.Loans[0].Principal))
	assert.Equal(t, a.Loans[0].StartDate, b.Loans[0].StartDate)
	require.Len(t, b.Loans[0].Payments, 2)
	assert.Equal(t, a.Loans[0].Payments[1].Reverses, b.Loans[0].Payments[1].Reverses)
	assert.Equal(t, "bounced", b.Loans[0].Payments[1].Note)
	assert.True(t, loan.TotalPaid(*b.Loans[0]).IsZero())
}

func TestEncodeBook_Layout(t *testing.T) {
	data, err := loan.MarshalBook(sampleBook(t))
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"principal": 1000.5`)
	assert.Contains(t, s, `"term_weeks": 10`)
	assert.Contains(t, s, `"start_date": "2025-03-01"`)
	assert.Contains(t, s, `"date": "2025-03-08"`)
	assert.Contains(t, s, `"loans": []`, "client without loans")
}

func TestDecodeBook_Empty(t *testing.T) {
	b, err := loan.DecodeBook(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, b.Clients)
}

func TestDecodeBook_HandWritten(t *testing.T) {
	// GIVEN: A document without ids
	doc := `{"clients": [{"name": "Ana", "phone": "1", "loans": [
		{"principal": 300, "term_weeks": 3, "start_date": "2025-03-01",
		 "payments": [{"amount": 100, "date": "2025-03-02"}]}]}]}`

	b, err := loan.UnmarshalBook([]byte(doc))
	require.NoError(t, err)

	// THEN: Fresh ids are assigned
	c := b.Clients[0]
	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.Loans[0].ID)
	assert.NotEmpty(t, c.Loans[0].Payments[0].ID)
	assertDecimal(t, "200", loan.RemainingBalance(*c.Loans[0]))
}

func TestDecodeBook_CorruptTermSurvivesDecoding(t *testing.T) {
	doc := `{"clients": [{"name": "Ana", "loans": [{"principal": 300, "term_weeks": 0, "start_date": "2025-03-01"}]}]}`

	b, err := loan.UnmarshalBook([]byte(doc))
	require.NoError(t, err)

	_, err = loan.AccountSnapshot(*b.Clients[0], march1)
	assert.ErrorIs(t, err, loan.ErrDivideByZero)
}

func TestDecodeBook_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad date", `{"clients":[{"name":"A","loans":[{"principal":1,"term_weeks":1,"start_date":"01/03/2025"}]}]}`, loan.ErrMalformedDate},
		{"bad payment date", `{"clients":[{"name":"A","loans":[{"principal":1,"term_weeks":1,"start_date":"2025-03-01","payments":[{"amount":1,"date":"yesterday"}]}]}]}`, loan.ErrMalformedDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loan.UnmarshalBook([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), `client "A" loan 0`)
		})
	}

	_, err := loan.UnmarshalBook([]byte(`{"clients": [`))
	assert.Error(t, err)
}
