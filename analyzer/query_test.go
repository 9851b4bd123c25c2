package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var queryBase = time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)

func TestQuery_PaginationTotals(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)
	ctx := context.Background()

	mustIngest(t, p, "other.csv", csvRows(7, queryBase, func(int) string { return "info" }))
	res := mustIngest(t, p, "main.csv", csvRows(15, queryBase, func(int) string { return "info" }))

	page, err := q.Query(ctx, Filter{SessionID: res.SessionID, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 5)
	require.EqualValues(t, 15, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 10, page.PageSize)
	require.Equal(t, 2, page.TotalPages)

	page, err = q.Query(ctx, Filter{SessionID: res.SessionID, Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, page.Records)
	require.NotNil(t, page.Records)
	require.EqualValues(t, 15, page.Total)

	page, err = q.Query(ctx, Filter{Page: 1, PageSize: 100})
	require.NoError(t, err)
	require.EqualValues(t, 22, page.Total)
	require.Equal(t, 1, page.TotalPages)
}

func TestQuery_PagesPartitionMatches(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	res := mustIngest(t, p, "a.csv", csvRows(23, queryBase, func(i int) string {
		if i%2 == 0 {
			return "Error"
		}
		return "info"
	}))

	seen := map[uint]bool{}
	var prev *LogRecord
	for pageNo := 1; ; pageNo++ {
		page, err := q.Query(context.Background(), Filter{SessionID: res.SessionID, Level: "Error", Page: pageNo, PageSize: 5})
		require.NoError(t, err)
		require.EqualValues(t, 12, page.Total)
		if len(page.Records) == 0 {
			break
		}
		for i := range page.Records {
			rec := page.Records[i]
			require.Equal(t, "Error", rec.Level)
			require.False(t, seen[rec.ID], "record %d returned twice", rec.ID)
			seen[rec.ID] = true
			if prev != nil {
				require.False(t, rec.Timestamp.After(prev.Timestamp), "not newest first")
			}
			prev = &rec
		}
	}
	require.Len(t, seen, 12)
}

func TestQuery_OrderingTiesBreakByID(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	mustIngest(t, p, "ties.csv", "uid,resp,_datetime_\n"+
		"a,first,2026-02-12T10:00:00Z\n"+
		"b,second,2026-02-12T10:00:00Z\n"+
		"c,newest,2026-02-12T11:00:00Z\n"+
		"d,third,2026-02-12T10:00:00Z\n")

	page, err := q.Query(context.Background(), Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	var got []string
	for _, r := range page.Records {
		got = append(got, r.UID)
	}
	require.Equal(t, []string{"c", "a", "b", "d"}, got)
	for i := 2; i < len(page.Records); i++ {
		require.Less(t, page.Records[i-1].ID, page.Records[i].ID)
	}
}

func TestQuery_KeywordIsCaseSensitiveOverEventNameAndPayload(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	mustIngest(t, p, "kw.csv", "uid,event_name,resp,device\n"+
		"u1,Checkout,done,ios\n"+
		"u2,browse,nothing,Checkout-Kiosk\n"+
		"u3,checkout,lower,android\n"+
		"u4,view,<b>Checkout</b>,web\n")

	page, err := q.Query(context.Background(), Filter{Keyword: "Checkout", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	for _, r := range page.Records {
		require.NotEqual(t, "u3", r.UID)
	}

	page, err = q.Query(context.Background(), Filter{Keyword: "<b>Checkout", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "u4", page.Records[0].UID)
}

func TestQuery_KeywordWithQuotesAndBackslashesMatchesResp(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	mustIngest(t, p, "esc.csv", "uid,resp\n"+
		`u1,"request failed: ""timeout"" after 3s"`+"\n"+
		`u2,path C:\app\main.exe crashed`+"\n"+
		`u3,"{""code"":500}"`+"\n")

	for kw, want := range map[string]string{
		`"timeout"`:    "u1",
		`timeout`:      "u1",
		`C:\app`:       "u2",
		`{"code":500}`: "u3",
	} {
		page, err := q.Query(context.Background(), Filter{Keyword: kw, Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total, kw)
		require.Equal(t, want, page.Records[0].UID, kw)
	}
}

func TestQuery_TimeRangeIsInclusive(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	mustIngest(t, p, "r.csv", csvRows(10, queryBase, func(int) string { return "info" }))

	start := queryBase.Add(2 * time.Second)
	end := queryBase.Add(5 * time.Second)
	page, err := q.Query(context.Background(), Filter{Start: &start, End: &end, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 4, page.Total)
	require.True(t, page.Records[0].Timestamp.Equal(end))
	require.True(t, page.Records[3].Timestamp.Equal(start))

	// Same instant expressed in another zone.
	local := start.In(time.FixedZone("X", -5*3600))
	page, err = q.Query(context.Background(), Filter{Start: &local, End: &local, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
}

func TestQuery_CombinedPredicates(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	first := mustIngest(t, p, "one.csv", csvRows(6, queryBase, func(i int) string { return []string{"info", "Error"}[i%2] }))
	mustIngest(t, p, "two.csv", csvRows(6, queryBase, func(i int) string { return "Error" }))

	end := queryBase.Add(3 * time.Second)
	page, err := q.Query(context.Background(), Filter{
		SessionID: first.SessionID, Level: "Error", Keyword: "event", End: &end, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	// Rows 1 and 3 of the first session.
	require.EqualValues(t, 2, page.Total)
	for _, r := range page.Records {
		require.Equal(t, first.SessionID, r.SessionID)
	}
}

func TestQuery_InvalidFilter(t *testing.T) {
	q := NewQueryEngine(newTestDB(t), 100, nil, nil)
	late := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tooFar := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, f := range map[string]Filter{
		"zero page":       {Page: 0, PageSize: 10},
		"zero page size":  {Page: 1, PageSize: 0},
		"negative size":   {Page: 1, PageSize: -1},
		"over max":        {Page: 1, PageSize: 101},
		"start after end": {Page: 1, PageSize: 10, Start: &late, End: &early},
		"out of range":    {Page: 1, PageSize: 10, End: &tooFar},
	} {
		_, err := q.Query(context.Background(), f)
		var ife *InvalidFilterError
		require.True(t, errors.As(err, &ife), "%s: %v", name, err)
	}
}

func TestQuery_GetAndNotFound(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, NewMetrics(prometheus.NewRegistry()))

	mustIngest(t, p, "g.csv", "uid,resp,custom\nu1,hello there,\"a,b\"\n")
	page, err := q.Query(context.Background(), Filter{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)

	rec, err := q.Get(context.Background(), page.Records[0].ID)
	require.NoError(t, err)
	require.Equal(t, "hello", rec.EventName)
	row, err := DecodeRawPayload(rec.RawPayload)
	require.NoError(t, err)
	require.Equal(t, "a,b", row["custom"])

	_, err = q.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, strings.Contains(err.Error(), "999"))

	require.Equal(t, 1.0, testutil.ToFloat64(q.metrics.queries.WithLabelValues("log", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(q.metrics.queries.WithLabelValues("log", "ok")))
}

func TestQuery_ListSessionsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	q := NewQueryEngine(db, 0, nil, nil)

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }
	a := mustIngest(t, p, "a.csv", "uid\nu1\n")
	at = at.Add(time.Hour)
	b := mustIngest(t, p, "b.csv", "uid\nu1\nu2\n")
	// Same upload time: higher id first.
	c := mustIngest(t, p, "c.csv", "uid\nu3\n")

	// A leftover created session is not listed.
	require.NoError(t, db.Create(&Session{Name: "crashed", State: SessionCreated, UploadedAt: at.Add(time.Hour)}).Error)

	sessions, err := q.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, []uint{c.SessionID, b.SessionID, a.SessionID}, []uint{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	require.EqualValues(t, 2, sessions[1].TotalLogs)

	s, err := q.GetSession(context.Background(), b.SessionID)
	require.NoError(t, err)
	require.Equal(t, "b", s.Name)

	_, err = q.GetSession(context.Background(), 12345)
	require.ErrorIs(t, err, ErrNotFound)

	sessions = nil
	require.NoError(t, db.Find(&sessions).Error)
	require.Len(t, sessions, 4)
}
