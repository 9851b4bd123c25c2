package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, src *RowSource) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := src.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestRowSource_Basic(t *testing.T) {
	body := "\ufeffuid,level,resp\nu1,Info,\"hello, world\"\n\nu2,Error,x,extra1,extra2\nu3\n"
	src := NewRowSource(strings.NewReader(body))

	header, err := src.Header()
	require.NoError(t, err)
	require.Equal(t, []string{"uid", "level", "resp"}, header)

	rows := readAll(t, src)
	require.Len(t, rows, 3, "encoding/csv drops empty lines")

	require.Equal(t, 2, rows[0].Line)
	require.Equal(t, map[string]string{"uid": "u1", "level": "Info", "resp": "hello, world"}, rows[0].Fields)

	require.Equal(t, 4, rows[1].Line)
	require.Equal(t, 2, rows[1].Extra)
	require.Equal(t, "extra1", rows[1].Fields["_3"])
	require.Equal(t, "extra2", rows[1].Fields["_4"])

	require.Equal(t, map[string]string{"uid": "u3"}, rows[2].Fields)

	sum := sha256.Sum256([]byte(body))
	require.Equal(t, hex.EncodeToString(sum[:]), src.Digest())
	require.Equal(t, int64(len(body)), src.Size())

	_, err = src.Next()
	require.Equal(t, io.EOF, err)
}

func TestRowSource_BlankRow(t *testing.T) {
	src := NewRowSource(strings.NewReader("uid,level\n,\nu1,info\n"))
	rows := readAll(t, src)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Blank())
	require.False(t, rows[1].Blank())
}

func TestRowSource_EmptyStream(t *testing.T) {
	src := NewRowSource(strings.NewReader(""))
	_, err := src.Next()
	require.Equal(t, io.EOF, err)
	require.Equal(t, int64(0), src.Size())
}

func TestRowSource_InvalidUTF8(t *testing.T) {
	src := NewRowSource(strings.NewReader("uid,resp\nu1,ok\nu2,bad\xff\xfe\n"))
	_, err := src.Next()
	require.NoError(t, err)

	_, err = src.Next()
	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	require.Equal(t, 3, de.Line)
}

func TestRowSource_ReaderFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("uid\nu1\n"), iotest.ErrReader(boom))
	src := NewRowSource(r)

	var err error
	for err == nil {
		_, err = src.Next()
	}
	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	require.ErrorIs(t, err, boom)
}
