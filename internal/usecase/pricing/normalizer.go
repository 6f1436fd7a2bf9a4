package pricing

import "math"

// DiscountRate — фиксированная наценка портала поверх базовой цены.
const DiscountRate = 0.04998

// BasePrice снимает наценку портала с отображаемой цены и округляет до целой
// денежной единицы (половина вверх). Для nil и неположительных значений
// возвращает nil: у недоступной ячейки цены нет.
func BasePrice(displayPrice *float64) *float64 {
	if displayPrice == nil || *displayPrice <= 0 {
		return nil
	}
	base := math.Floor(*displayPrice/(1+DiscountRate) + 0.5)
	return &base
}
