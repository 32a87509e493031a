package cancellation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier はキャンセルポリシーの適用帯を表す
// 出発までの残り時間で一意に決まり、帯は [0, ∞) を隙間なく覆う
type Tier string

const (
	// TierEarly は出発96時間超前（座席ごとの定額手数料）
	TierEarly Tier = "early"
	// TierStandard は出発48時間超〜96時間前（25%）
	TierStandard Tier = "standard"
	// TierLate は出発12時間超〜48時間前（50%）
	TierLate Tier = "late"
	// TierFinal は出発12時間前以降（返金なし）
	TierFinal Tier = "final"
	// TierOverride は管理者による全額返金の明示的な例外
	TierOverride Tier = "override"
)

var (
	// earlyFeePerSeat はEarly帯の座席1席あたりの手数料
	earlyFeePerSeat = decimal.NewFromInt(400)
	// standardRate / lateRate / finalRate は元金額に対する手数料率
	standardRate = decimal.NewFromFloat(0.25)
	lateRate     = decimal.NewFromFloat(0.5)
	finalRate    = decimal.NewFromInt(1)
)

// RefundQuote は返金見積もりを表す
type RefundQuote struct {
	OriginalAmount decimal.Decimal
	Charges        decimal.Decimal
	RefundAmount   decimal.Decimal
	Tier           Tier
}

// TierFor は出発までの残り時間から適用帯を判定する
// 境界は 96/48/12 時間ちょうどが下側の帯に入る（96hちょうどはStandard）
// 出発済み（負の残り時間）はFinal帯として扱う
func TierFor(untilDeparture time.Duration) Tier {
	switch {
	case untilDeparture > 96*time.Hour:
		return TierEarly
	case untilDeparture > 48*time.Hour:
		return TierStandard
	case untilDeparture > 12*time.Hour:
		return TierLate
	default:
		return TierFinal
	}
}

// Evaluate は出発までの残り時間からキャンセル手数料と返金額を計算する
// 返金額は max(0, 元金額 - 手数料) で、決して負にならない
func Evaluate(originalAmount decimal.Decimal, seatCount int, departure, now time.Time) *RefundQuote {
	tier := TierFor(departure.Sub(now))

	var charges decimal.Decimal
	switch tier {
	case TierEarly:
		charges = earlyFeePerSeat.Mul(decimal.NewFromInt(int64(seatCount)))
	case TierStandard:
		charges = originalAmount.Mul(standardRate)
	case TierLate:
		charges = originalAmount.Mul(lateRate)
	default:
		charges = originalAmount.Mul(finalRate)
	}

	return newRefundQuote(originalAmount, charges, tier)
}

// EvaluateOverride は帯判定を行わず全額返金する
// 管理者権限による明示的なポリシー例外であり、呼び出し側で必ず記録すること
func EvaluateOverride(originalAmount decimal.Decimal) *RefundQuote {
	return newRefundQuote(originalAmount, decimal.Zero, TierOverride)
}

func newRefundQuote(original, charges decimal.Decimal, tier Tier) *RefundQuote {
	refund := original.Sub(charges)
	if refund.IsNegative() {
		refund = decimal.Zero
	}
	return &RefundQuote{
		OriginalAmount: original,
		Charges:        charges,
		RefundAmount:   refund,
		Tier:           tier,
	}
}
