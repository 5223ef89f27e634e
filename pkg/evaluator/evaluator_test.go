package evaluator

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		int64  int64
		double float64
	}{
		{"addition", "10+2", 12, 12.0},
		{"parentheses", "(24+2)*2", 52, 52.0},
		{"precedence", "24+2*8", 40, 40.0},
		{"ternary true", "1=1?1:0", 1, 1.0},
		{"ternary false", "1=0?1:0", 0, 0.0},
		{"greater true", "2>1", 1, 1.0},
		{"greater false", "2>2", 0, 0.0},
		{"lower true", "1<2", 1, 1.0},
		{"lower false", "2<2", 0, 0.0},
		{"subtraction", "10-8", 2, 2.0},
		{"left associative subtraction", "10-4-3", 3, 3.0},
		{"multiplication", "2.5*4", 10, 10.0},
		{"division", "10/4", 2, 2.5},
		{"division float", "10.0/4", 2, 2.5},
		{"left associative division", "100/10/5", 2, 2.0},
		{"minus", "4*-3", -12, -12.0},
		{"remainder", "10%3", 1, 1.0},
		{"power", "2**10", 1024, 1024.0},
		{"power precedence", "2**10*2", 2048, 2048.0},
		{"power right associative", "2**3**2", 512, 512.0},
		{"and", "255 & 8", 8, 8.0},
		{"or", "128 | 8", 136, 136.0},
		{"xor", "3 ^ 1", 2, 2.0},
		{"not", "~255", -256, -256.0},
		{"not equal true", "1<>2", 1, 1.0},
		{"not equal false", "1<>1", 0, 0.0},
		{"equal true", "1=1", 1, 1.0},
		{"equal false", "1=2", 0, 0.0},
		{"greater or equal true", "2>=2", 1, 1.0},
		{"greater or equal false", "1>=2", 0, 0.0},
		{"less or equal true", "2<=2", 1, 1.0},
		{"less or equal false", "2<=1", 0, 0.0},
		{"not equal true double", "2.1<>2", 1, 1.0},
		{"not equal false double", "1.0<>1", 0, 0.0},
		{"equal true double", "1.0=1", 1, 1.0},
		{"equal false double", "2.1=2", 0, 0.0},
		{"greater true double", "2.1>2", 1, 1.0},
		{"greater false double", "2>2.1", 0, 0.0},
		{"less true double", "2<2.1", 1, 1.0},
		{"less false double", "2.1<2", 0, 0.0},
		{"greater or equal true double", "2.1>=2", 1, 1.0},
		{"greater or equal false double", "2>=2.1", 0, 0.0},
		{"less or equal true double", "2<=2.1", 1, 1.0},
		{"less or equal false double", "2.1<=2", 0, 0.0},
		{"bitwise and of comparisons", "(2=2)&(1=1)", 1, 1.0},
		{"bitwise and of comparisons false", "(2=2)&(1=2)", 0, 0.0},
		{"bitwise or of comparisons", "(2=2)|(1=2)", 1, 1.0},
		{"bitwise or of comparisons false", "(1=2)|(0=2)", 0, 0.0},
		{"logical and", "1 && 2", 1, 1.0},
		{"logical or", "0 || 0", 0, 0.0},
		{"left shift", "1<<4", 16, 16.0},
		{"right shift", "16>>4", 1, 1.0},
		{"negative shift", "16<<-4", 1, 1.0},
		{"hexadecimal", "0xFF + 1", 256, 256.0},
		{"exponent literal", "1e3 / 10", 100, 100.0},
		{"leading dot", ".5 * 4", 2, 2.0},
		{"cos", "COS(PI)", -1, -1.0},
		{"sin", "SIN(-PI/2)", -1, -1.0},
		{"lowercase function", "sqrt(16)", 4, 4.0},
		{"abs", "ABS(-7)", 7, 7.0},
		{"sgn", "SGN(-0.5)", -1, -1.0},
		{"neg", "NEG(3)", -3, -3.0},
		{"floor", "FLOOR(2.7)", 2, 2.0},
		{"ceil", "CEIL(2.2)", 3, 3.0},
		{"truncation", "1+2*4.4", 9, 9.8},
		{"negative truncation", "-7/2", -3, -3.5},
		{"remaining operator", "(0 & 1)=0?((0 & 1)+2):1", 2, 2.0},
		{"small divisor", "(4/(20/10000))", 2000, 2000.0},
		{"pixel format bits", "(0x01080001 >> 16) & 0xFF", 8, 8.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(tt.expr)
			if err != nil {
				t.Fatalf("New(%q) failed: %v", tt.expr, err)
			}

			gotInt, err := ev.EvaluateAsInt64()
			if err != nil {
				t.Fatalf("EvaluateAsInt64(%q) failed: %v", tt.expr, err)
			}
			if gotInt != tt.int64 {
				t.Errorf("Expected %q as int64 to be %d, got %d", tt.expr, tt.int64, gotInt)
			}

			gotDouble, err := ev.EvaluateAsDouble()
			if err != nil {
				t.Fatalf("EvaluateAsDouble(%q) failed: %v", tt.expr, err)
			}
			if !approxEqual(gotDouble, tt.double) {
				t.Errorf("Expected %q as double to be %v, got %v", tt.expr, tt.double, gotDouble)
			}
		})
	}
}

func TestDoubleVariables(t *testing.T) {
	ev := MustNew("V_DBLA+V_DBLB")
	ev.SetDoubleVariable("V_DBLA", 123.0)
	ev.SetDoubleVariable("V_DBLB", 0.4)

	got, err := ev.EvaluateAsDouble()
	if err != nil {
		t.Fatalf("EvaluateAsDouble failed: %v", err)
	}
	if !approxEqual(got, 123.4) {
		t.Errorf("Expected 123.4, got %v", got)
	}
}

func TestIntVariable(t *testing.T) {
	ev := MustNew("A_1")
	ev.SetIntVariable("A_1", 123)

	got, err := ev.EvaluateAsInt64()
	if err != nil {
		t.Fatalf("EvaluateAsInt64 failed: %v", err)
	}
	if got != 123 {
		t.Errorf("Expected 123, got %d", got)
	}
}

func TestRebindingWithoutReparse(t *testing.T) {
	ev := MustNew("VAR+10")
	ev.SetDoubleVariable("VAR", 1.2)

	got, err := ev.EvaluateAsDouble()
	if err != nil {
		t.Fatalf("EvaluateAsDouble failed: %v", err)
	}
	if !approxEqual(got, 11.2) {
		t.Errorf("Expected 11.2, got %v", got)
	}

	ev.SetIntVariable("VAR", 5)
	gotInt, err := ev.EvaluateAsInt64()
	if err != nil {
		t.Fatalf("EvaluateAsInt64 failed: %v", err)
	}
	if gotInt != 15 {
		t.Errorf("Expected 15 after rebinding, got %d", gotInt)
	}
}

func TestPayloadFormula(t *testing.T) {
	ev := MustNew("WIDTH * HEIGHT * ((PIXELFORMAT >> 16) & 0xFF) / 8")
	ev.SetIntVariable("WIDTH", 128)
	ev.SetIntVariable("HEIGHT", 128)
	ev.SetIntVariable("PIXELFORMAT", 0x01080001)

	got, err := ev.EvaluateAsInt64()
	if err != nil {
		t.Fatalf("EvaluateAsInt64 failed: %v", err)
	}
	if got != 16384 {
		t.Errorf("Expected 16384, got %d", got)
	}

	want := []string{"HEIGHT", "PIXELFORMAT", "WIDTH"}
	vars := ev.Variables()
	if len(vars) != len(want) {
		t.Fatalf("Expected variables %v, got %v", want, vars)
	}
	for i := range want {
		if vars[i] != want[i] {
			t.Errorf("Expected variable %d to be %s, got %s", i, want[i], vars[i])
		}
	}
}

func TestUndefinedVariable(t *testing.T) {
	ev := MustNew("Width * Height")
	ev.SetIntVariable("Width", 10)

	if _, err := ev.EvaluateAsInt64(); !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("Expected ErrUndefinedVariable, got %v", err)
	}
	if _, err := ev.EvaluateAsDouble(); !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("Expected ErrUndefinedVariable, got %v", err)
	}
}

func TestConstantsCanBeShadowed(t *testing.T) {
	ev := MustNew("PI * 2")
	if got, _ := ev.EvaluateAsDouble(); !approxEqual(got, 2*math.Pi) {
		t.Errorf("Expected 2*PI, got %v", got)
	}

	ev.SetIntVariable("PI", 3)
	if got, _ := ev.EvaluateAsInt64(); got != 6 {
		t.Errorf("Expected bound PI to win, got %d", got)
	}

	if vars := ev.Variables(); len(vars) != 0 {
		t.Errorf("Expected constants to be excluded from variables, got %v", vars)
	}
}

func TestDivisionByZero(t *testing.T) {
	ev := MustNew("1/0")
	if _, err := ev.EvaluateAsInt64(); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Expected ErrDivisionByZero for int64 evaluation, got %v", err)
	}

	got, err := ev.EvaluateAsDouble()
	if err != nil {
		t.Fatalf("EvaluateAsDouble failed: %v", err)
	}
	if !math.IsInf(got, 1) {
		t.Errorf("Expected +Inf, got %v", got)
	}

	nan, err := MustNew("0.0/0").EvaluateAsDouble()
	if err != nil {
		t.Fatalf("EvaluateAsDouble failed: %v", err)
	}
	if !math.IsNaN(nan) {
		t.Errorf("Expected NaN, got %v", nan)
	}

	rem := MustNew("7%0")
	if _, err := rem.EvaluateAsInt64(); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Expected ErrDivisionByZero for remainder, got %v", err)
	}
	if _, err := rem.EvaluateAsDouble(); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Expected ErrDivisionByZero for remainder in double mode, got %v", err)
	}
}

func TestTernaryEvaluatesSelectedBranchOnly(t *testing.T) {
	ev := MustNew("X > 0 ? 100 / X : 0")
	ev.SetIntVariable("X", 0)

	got, err := ev.EvaluateAsInt64()
	if err != nil {
		t.Fatalf("Expected the untaken branch to be skipped, got %v", err)
	}
	if got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func TestNotRepresentable(t *testing.T) {
	ev := MustNew("2.0 ** 70")
	if _, err := ev.EvaluateAsInt64(); !errors.Is(err, ErrNotRepresentable) {
		t.Errorf("Expected ErrNotRepresentable, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		expr string
		pos  int
	}{
		{"", 0},
		{"1 +", 3},
		{"(1 + 2", 6},
		{"1 + * 2", 4},
		{"1 $ 2", 2},
		{"1 2", 2},
		{"FOO(1)", 0},
		{"1 ? 2", 5},
		{"0x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := New(tt.expr)
			if err == nil {
				t.Fatalf("Expected parse error for %q", tt.expr)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("Expected errors.Is(err, ErrParse), got %v", err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *ParseError, got %T", err)
			}
			if perr.Pos != tt.pos {
				t.Errorf("Expected position %d for %q, got %d (%s)", tt.pos, tt.expr, perr.Pos, perr.Msg)
			}
		})
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	ev := MustNew("A * 2")
	ev.SetIntVariable("A", 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					ev.SetIntVariable("A", int64(j))
				} else if _, err := ev.EvaluateAsInt64(); err != nil {
					t.Errorf("EvaluateAsInt64 failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
}
