package mathpack

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifzz "github.com/stuffzez/sifzz/src"
)

func newHost(t *testing.T) (*sifzz.Host, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cfg := sifzz.DefaultConfig()
	cfg.Stdout = out
	cfg.Stderr = &bytes.Buffer{}
	h := sifzz.New(cfg)
	require.NoError(t, h.LoadExtension(New()))
	return h, out
}

func TestFunctions(t *testing.T) {
	h, _ := newHost(t)
	h.Env().Set("angle", 0.0)

	tests := []struct {
		expr string
		want interface{}
	}{
		{"sin(angle)", 0.0},
		{"cos(0)", 1.0},
		{"tan(0)", 0.0},
		{"power(2, 10)", 1024.0},
		{"power(2, -1)", 0.5},
		{"log(1)", 0.0},
		{"log(8, 2)", 3.0},
		{"floor(2.7)", int64(2)},
		{"floor(-2.5)", int64(-3)},
		{"ceil(2.1)", int64(3)},
		{"ceil(5)", int64(5)},
		{"pi", math.Pi},
		{"pi()", math.Pi},
		{"pi() * 2", 2 * math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := h.Eval(tt.expr)
			if f, ok := tt.want.(float64); ok {
				require.IsType(t, 0.0, got)
				assert.InDelta(t, f, got.(float64), 1e-9)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomainErrorsLeaveText(t *testing.T) {
	h, _ := newHost(t)
	for _, expr := range []string{"log(0)", "log(-1)", "log(8, 1)", "power(-8, 0.5)", `sin("x")`, "sin(1, 2)"} {
		assert.Equal(t, expr, h.Eval(expr), expr)
	}
}

func TestInScript(t *testing.T) {
	h, out := newHost(t)
	src := `set r to 2
set area to round(pi() * r * r, 2)
say area
if floor(area) is 12:
    say "twelve"
end if`
	require.NoError(t, h.Run(context.Background(), src, "math.sfzz"))
	assert.Equal(t, "12.57\ntwelve\n", out.String())
}
