package dialect

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvsniff/internal/sample"
)

func detect(t *testing.T, in string, ov Overrides) (Dialect, error) {
	t.Helper()
	return Detect(sample.New([]byte(in)), ov)
}

func TestDetect_Delimiters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want byte
	}{
		{"comma", "a,b,c\n1,2,3\n4,5,6\n", ','},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"semicolon", "a;b\n1,5;2,5\n3,0;4,0\n", ';'},
		{"pipe", "id|name\n1|x\n2|y\n", '|'},
		{"colon", "host:port\nlocalhost:80\nexample:443\n", ':'},
		{"tie goes to earlier candidate", "a,b;c\n1,2;3\n", ','},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := detect(t, tt.in, Overrides{})
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), string(d.Delimiter))
		})
	}
}

func TestDetect_Ambiguous(t *testing.T) {
	t.Parallel()

	_, err := detect(t, "hello world\nfoo bar\n", Overrides{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguous))

	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.Len(t, amb.Scores, len(Candidates))
	assert.Contains(t, err.Error(), `\t=0.00`)

	_, err = detect(t, "", Overrides{})
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestDetect_Quoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		quote   byte
		quoting QuotingStyle
		escape  byte
		doubleQ bool
	}{
		{
			name:    "unquoted",
			in:      "name,age,active\nAlice,30,true\nBob,25,false\n",
			quoting: QuotingNone,
			doubleQ: true,
		},
		{
			name:    "minimal",
			in:      "id,desc\n1,\"x, y\"\n2,z\n",
			quote:   '"',
			quoting: QuotingMinimal,
			doubleQ: true,
		},
		{
			name:    "all",
			in:      "\"a\",\"b\"\n\"1\",\"2\"\n\"3\",\"4\"\n",
			quote:   '"',
			quoting: QuotingAll,
			doubleQ: true,
		},
		{
			name:    "backslash escapes",
			in:      "\"a\\\"b\",c\n\"d\\\"e\",f\n",
			quote:   '"',
			quoting: QuotingMinimal,
			escape:  '\\',
		},
		{
			name:    "doubled quotes",
			in:      "\"say \"\"hi\"\"\",1\nx,2\n",
			quote:   '"',
			quoting: QuotingMinimal,
			doubleQ: true,
		},
		{
			name:    "single quote",
			in:      "'a';'b'\n'c';'d'\n",
			quote:   '\'',
			quoting: QuotingAll,
			doubleQ: true,
		},
		{
			name:    "quotes around values that need none",
			in:      "\"name\",\"age\"\n\"Alice\",30\n\"Bob\",25\n\"Carol\",41\n",
			quote:   '"',
			quoting: QuotingNone,
			doubleQ: true,
		},
		{
			name:    "quoted newline",
			in:      "id,note\n1,\"two\nlines\"\n2,plain\n",
			quote:   '"',
			quoting: QuotingMinimal,
			doubleQ: true,
		},
		{
			name:    "apostrophe is not a quote",
			in:      "name,note\nbob,it's fine\nann,ok\n",
			quoting: QuotingNone,
			doubleQ: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := detect(t, tt.in, Overrides{})
			require.NoError(t, err)
			assert.Equal(t, tt.quote, d.Quote, "quote")
			assert.Equal(t, tt.quoting, d.Quoting, "quoting")
			assert.Equal(t, tt.escape, d.Escape, "escape")
			assert.Equal(t, tt.doubleQ, d.DoubleQuote, "double quote")
		})
	}
}

func TestDetect_Overrides(t *testing.T) {
	t.Parallel()

	d, err := detect(t, "hello world\nfoo bar\n", Overrides{Delimiter: ' '})
	require.NoError(t, err)
	assert.Equal(t, byte(' '), d.Delimiter)

	none := byte(0)
	d, err = detect(t, "\"a\",\"b\"\n\"1\",\"2\"\n", Overrides{Quote: &none})
	require.NoError(t, err)
	assert.False(t, d.HasQuote())
	assert.Equal(t, QuotingNone, d.Quoting)
}

func TestDetect_Terminator(t *testing.T) {
	t.Parallel()

	d, err := detect(t, "a,b\r\n1,2\r\n", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, CRLF, d.Terminator)

	d, err = detect(t, "a,b\n1,2\n", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, LF, d.Terminator)
}

func TestScoreDelimiters(t *testing.T) {
	t.Parallel()

	lines := [][]byte{[]byte("a,b"), []byte("a,b,c"), []byte("x")}
	scores := ScoreDelimiters(lines, []byte{',', ';'})
	require.Len(t, scores, 2)

	comma := scores[0]
	assert.InDelta(t, 1.0, comma.Mean, 1e-9)
	assert.InDelta(t, 1.0, comma.Median, 1e-9)
	// variance 2/3 over mean² 1
	assert.InDelta(t, 1.0/3, comma.Score, 1e-9)

	assert.Zero(t, scores[1].Score)
}

func TestDialect_JSON(t *testing.T) {
	t.Parallel()

	d := Dialect{Delimiter: '\t', Quote: '"', Quoting: QuotingMinimal, DoubleQuote: true}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"delimiter":"\t","quote":"\"","quoting":"minimal","double_quote":true,"escape":"","terminator":"LF"}`, string(b))

	assert.Equal(t, `\t`, FormatByte('\t'))
	assert.Equal(t, "none", FormatByte(0))
	assert.Equal(t, ";", FormatByte(';'))
}
