package browser

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12 345 ₽", 12345, true},
		{"12 345,00 ₽", 12345, true},
		{"от 4 990 руб/ночь", 4990, true},
		{"210", 210, true},
		{"1 234.56", 1234.56, true},
		{"цена уточняется", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parsePrice(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q: ожидали ok=%v", tc.in, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("%q: ожидали %v, получили %v", tc.in, tc.want, got)
		}
	}
}

func TestMatchCard(t *testing.T) {
	cards := []resultCard{
		{Name: "Гранд Отель Европа", Price: "25 000 ₽"},
		{Name: "Мини-отель Нева", Price: "4 990 ₽"},
	}
	card, ok := matchCard(cards, "нева")
	if !ok {
		t.Fatalf("ожидали совпадение по подстроке")
	}
	if card.Price != "4 990 ₽" {
		t.Fatalf("ожидали карточку второго отеля, получили %+v", card)
	}

	if _, ok := matchCard(cards, "Хилтон"); ok {
		t.Fatalf("не ожидали совпадения для чужого названия")
	}
	if _, ok := matchCard(cards, "  "); ok {
		t.Fatalf("пустой запрос не должен совпадать")
	}
}
