package pricing

import "testing"

func TestBasePrice(t *testing.T) {
	cases := []struct {
		name    string
		display float64
		want    float64
	}{
		{"210 округляется до 200", 210, 200},
		{"300 округляется до 286", 300, 286},
		{"105 округляется до 100", 105, 100},
		{"1 округляется до 1", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BasePrice(&tc.display)
			if got == nil {
				t.Fatalf("не ожидали nil для %v", tc.display)
			}
			if *got != tc.want {
				t.Fatalf("ожидали %v, получили %v", tc.want, *got)
			}
		})
	}
}

func TestBasePriceNil(t *testing.T) {
	if got := BasePrice(nil); got != nil {
		t.Fatalf("ожидали nil для nil, получили %v", *got)
	}
}

func TestBasePriceNonPositive(t *testing.T) {
	zero := 0.0
	if got := BasePrice(&zero); got != nil {
		t.Fatalf("ожидали nil для нуля, получили %v", *got)
	}
	negative := -5.0
	if got := BasePrice(&negative); got != nil {
		t.Fatalf("ожидали nil для отрицательной цены, получили %v", *got)
	}
}
