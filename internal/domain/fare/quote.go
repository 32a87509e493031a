package fare

import (
	"github.com/shopspring/decimal"
)

// 運賃計算の定数
// 金額は全て固定小数点（decimal）で扱い、丸めは表示境界でのみ行う
var (
	// childRate は小児運賃の倍率（大人運賃の50%）
	childRate = decimal.NewFromFloat(0.5)
	// infantFee は幼児1人あたりの固定料金（倍率ではなく定額）
	infantFee = decimal.NewFromInt(10)
	// weightThreshold は遊覧飛行の体重サーチャージ閾値（kg）
	weightThreshold = decimal.NewFromInt(75)
	// surchargePerKg は閾値超過1kgあたりのサーチャージ額
	surchargePerKg = decimal.NewFromInt(500)
)

// Quote は運賃見積もりを表す（不変、リクエストごとに計算される）
type Quote struct {
	BasePrice decimal.Decimal
	Adults    int
	Children  int
	Infants   int
	Total     decimal.Decimal
}

// Passenger は遊覧飛行の搭乗者を表す
type Passenger struct {
	Name   string
	Weight decimal.Decimal
}

// QuoteFlight はフライト運賃を計算する
// total = basePrice*adults + basePrice*children*0.5 + infants*10
func QuoteFlight(basePrice decimal.Decimal, adults, children, infants int) (*Quote, error) {
	if adults < 0 || children < 0 || infants < 0 {
		return nil, ErrInvalidPassengerCount
	}

	total := basePrice.Mul(decimal.NewFromInt(int64(adults))).
		Add(basePrice.Mul(decimal.NewFromInt(int64(children))).Mul(childRate)).
		Add(infantFee.Mul(decimal.NewFromInt(int64(infants))))

	return &Quote{
		BasePrice: basePrice,
		Adults:    adults,
		Children:  children,
		Infants:   infants,
		Total:     total,
	}, nil
}

// QuoteJoyride は遊覧飛行の運賃を計算する
// 1席あたりの基本料金 × 人数に、搭乗者ごとの体重サーチャージを加算する
// サーチャージは75kg超過分1kgにつき500（搭乗者ごとに独立して計算、平均しない）
func QuoteJoyride(basePricePerSeat decimal.Decimal, passengers []Passenger) (*Quote, error) {
	for _, p := range passengers {
		if p.Weight.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidWeight
		}
	}

	total := basePricePerSeat.Mul(decimal.NewFromInt(int64(len(passengers))))
	for _, p := range passengers {
		excess := p.Weight.Sub(weightThreshold)
		if excess.GreaterThan(decimal.Zero) {
			total = total.Add(excess.Mul(surchargePerKg))
		}
	}

	return &Quote{
		BasePrice: basePricePerSeat,
		Adults:    len(passengers),
		Total:     total,
	}, nil
}
