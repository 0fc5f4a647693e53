package tokenize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csvConfig = Config{Delimiter: ',', Quote: '"', DoubleQuote: true}

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from State
		cls  byteClass
		want transition
	}{
		{FieldStart, classQuote, transition{actOpenQuote, InQuotedField}},
		{FieldStart, classDelim, transition{actEndField, FieldStart}},
		{InUnquotedField, classQuote, transition{actAppend, InUnquotedField}},
		{InQuotedField, classDelim, transition{actAppend, InQuotedField}},
		{InQuotedField, classNewline, transition{actAppend, InQuotedField}},
		{InQuotedField, classQuote, transition{actSkip, AfterQuote}},
		{AfterQuote, classQuote, transition{actAppendQuote, InQuotedField}},
		{AfterQuote, classDelim, transition{actEndField, FieldStart}},
		{AfterQuote, classOther, transition{actAppendQuoteAndByte, InQuotedField}},
		{InQuotedEscape, classQuote, transition{actAppend, InQuotedField}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseTable[tt.from][tt.cls], "%s/%d", tt.from, tt.cls)
	}

	tok, err := New(Config{Delimiter: ',', Quote: '"', Escape: '\\'})
	require.NoError(t, err)
	assert.Equal(t, transition{actAppendQuoteAndByte, InQuotedField}, tok.table[AfterQuote][classQuote],
		"without doubled quotes a second quote is literal")
	assert.Equal(t, transition{actAppendQuote, InQuotedField}, baseTable[AfterQuote][classQuote],
		"New must not mutate the shared table")
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		cfg  Config
		want [][]string
	}{
		{
			name: "simple rows",
			in:   "a,b,c\n1,2,3\n",
			cfg:  csvConfig,
			want: [][]string{{"a", "b", "c"}, {"1", "2", "3"}},
		},
		{
			name: "quoted delimiter and newline",
			in:   "\"x,y\",\"line1\nline2\"\n",
			cfg:  csvConfig,
			want: [][]string{{"x,y", "line1\nline2"}},
		},
		{
			name: "doubled quote",
			in:   "\"say \"\"hi\"\"\",2\n",
			cfg:  csvConfig,
			want: [][]string{{`say "hi"`, "2"}},
		},
		{
			name: "backslash escape",
			in:   `"a\"b",c` + "\n",
			cfg:  Config{Delimiter: ',', Quote: '"', Escape: '\\'},
			want: [][]string{{`a"b`, "c"}},
		},
		{
			name: "crlf without phantom rows",
			in:   "a;b\r\nc;d\r\n",
			cfg:  Config{Delimiter: ';', Quote: '"', DoubleQuote: true},
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "blank lines skipped",
			in:   "a\n\n\nb\n",
			cfg:  csvConfig,
			want: [][]string{{"a"}, {"b"}},
		},
		{
			name: "trailing delimiter yields empty field",
			in:   "a,b,\n",
			cfg:  csvConfig,
			want: [][]string{{"a", "b", ""}},
		},
		{
			name: "quoted empty field is a row",
			in:   "\"\"\n",
			cfg:  csvConfig,
			want: [][]string{{""}},
		},
		{
			name: "no trailing newline after closing quote",
			in:   "a,\"b\"",
			cfg:  csvConfig,
			want: [][]string{{"a", "b"}},
		},
		{
			name: "quote disabled",
			in:   "\"a\"\t\"b\n",
			cfg:  Config{Delimiter: '\t'},
			want: [][]string{{`"a"`, `"b`}},
		},
		{
			name: "stray byte after closing quote reopens the quoted field",
			in:   `"1" ,"Alice"` + "\n",
			cfg:  csvConfig,
			want: [][]string{{`1" ,"Alice`}},
		},
		{
			name: "quote inside unquoted field is literal",
			in:   `5'10",x` + "\n",
			cfg:  csvConfig,
			want: [][]string{{`5'10"`, "x"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows, err := Tokenize([]byte(tt.in), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Fields(rows))
		})
	}
}

func TestTokenize_StrayByteAfterQuoteStaysQuoted(t *testing.T) {
	t.Parallel()

	rows, err := Tokenize([]byte(`"1" ,"Alice"`+"\n"+"2,Bob\n"), csvConfig)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []bool{true}, rows[0].Quoted)
	assert.Equal(t, []string{"2", "Bob"}, rows[1].Fields)

	// Without a closing quote before the end the merged field is unterminated.
	_, err = Tokenize([]byte(`"Alice,"30`), csvConfig)
	var uq *UnterminatedQuoteError
	require.True(t, errors.As(err, &uq))
	assert.Equal(t, 0, uq.Row)
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	t.Parallel()

	in := "name,age\nBob,41\n\"Alice,\"30"
	rows, err := Tokenize([]byte(in), csvConfig)
	require.Error(t, err)

	var uq *UnterminatedQuoteError
	require.True(t, errors.As(err, &uq))
	assert.Equal(t, 2, uq.Row)
	assert.Equal(t, 3, uq.Line)
	assert.Equal(t, 16, uq.Offset)
	assert.Equal(t, [][]string{{"name", "age"}, {"Bob", "41"}}, Fields(rows))
}

func TestTokenize_RowPositions(t *testing.T) {
	t.Parallel()

	rows, err := Tokenize([]byte("h1,h2\r\n\"a\nb\",c\nd,e\n"), csvConfig)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, 0, rows[0].Offset)
	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, 7, rows[1].Offset)
	assert.Equal(t, []bool{true, false}, rows[1].Quoted)
	assert.Equal(t, 4, rows[2].Line)
	assert.Equal(t, 15, rows[2].Offset)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{
		{Delimiter: '\n'},
		{Delimiter: ',', Quote: ','},
		{Delimiter: ',', Quote: '\r'},
		{Delimiter: ',', Quote: '"', Escape: ','},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}
}

func TestQuoteField_RoundTrip(t *testing.T) {
	t.Parallel()

	values := []string{"plain", "with,comma", `with "quotes"`, "multi\nline", "", `back\slash "q"`}
	configs := []Config{
		csvConfig,
		{Delimiter: '\t', Quote: '"', Escape: '\\'},
		{Delimiter: ';', Quote: '\'', DoubleQuote: true},
	}

	for _, cfg := range configs {
		for _, v := range values {
			line := QuoteField(v, cfg) + string(cfg.Delimiter) + "end\n"
			rows, err := Tokenize([]byte(line), cfg)
			require.NoError(t, err, "%q", line)
			require.Len(t, rows, 1)
			assert.Equal(t, []string{v, "end"}, rows[0].Fields, "%q", line)
		}
	}

	assert.Equal(t, "plain", QuoteField("plain", csvConfig))
	assert.Equal(t, `"a,b"`, QuoteField("a,b", csvConfig))
}
