package tracker

import "time"

// Default state and polling values used when the caller supplies nothing.
const (
	DefaultCurrentCurrency = "usd"
	DefaultNativeCurrency  = "ETH"
	DefaultInterval        = 180 * time.Second
)

// ConversionState is the tracked conversion state. Pending fields hold a
// requested currency or asset that has not yet been confirmed by a successful
// refresh; an empty string means no change is pending.
type ConversionState struct {
	ConversionDate         int64    `json:"conversionDate"`
	ConversionRate         float64  `json:"conversionRate"`
	CurrentCurrency        string   `json:"currentCurrency"`
	NativeCurrency         string   `json:"nativeCurrency"`
	PendingCurrentCurrency string   `json:"pendingCurrentCurrency,omitempty"`
	PendingNativeCurrency  string   `json:"pendingNativeCurrency,omitempty"`
	USDConversionRate      *float64 `json:"usdConversionRate,omitempty"`
}

// StateChange is emitted to subscribers on every state commit. Changed lists
// the names of the fields that differ between Previous and Current.
type StateChange struct {
	Previous ConversionState
	Current  ConversionState
	Changed  []string
}

// Listener receives state change notifications.
type Listener func(StateChange)

func defaultState() ConversionState {
	return ConversionState{
		ConversionDate:  0,
		ConversionRate:  0,
		CurrentCurrency: DefaultCurrentCurrency,
		NativeCurrency:  DefaultNativeCurrency,
	}
}

// mergeInitialState overlays the caller-supplied fields on the defaults.
// Zero-valued currency fields keep their defaults; numeric fields default to
// zero anyway so they are copied as-is.
func mergeInitialState(initial *ConversionState) ConversionState {
	state := defaultState()
	if initial == nil {
		return state
	}

	state.ConversionDate = initial.ConversionDate
	state.ConversionRate = initial.ConversionRate
	if initial.CurrentCurrency != "" {
		state.CurrentCurrency = initial.CurrentCurrency
	}
	if initial.NativeCurrency != "" {
		state.NativeCurrency = initial.NativeCurrency
	}
	state.PendingCurrentCurrency = initial.PendingCurrentCurrency
	state.PendingNativeCurrency = initial.PendingNativeCurrency
	if initial.USDConversionRate != nil {
		usd := *initial.USDConversionRate
		state.USDConversionRate = &usd
	}
	return state
}

// diffFields returns the names of the fields that differ between two states.
func diffFields(prev, next ConversionState) []string {
	var changed []string
	if prev.ConversionDate != next.ConversionDate {
		changed = append(changed, "conversionDate")
	}
	if prev.ConversionRate != next.ConversionRate {
		changed = append(changed, "conversionRate")
	}
	if prev.CurrentCurrency != next.CurrentCurrency {
		changed = append(changed, "currentCurrency")
	}
	if prev.NativeCurrency != next.NativeCurrency {
		changed = append(changed, "nativeCurrency")
	}
	if prev.PendingCurrentCurrency != next.PendingCurrentCurrency {
		changed = append(changed, "pendingCurrentCurrency")
	}
	if prev.PendingNativeCurrency != next.PendingNativeCurrency {
		changed = append(changed, "pendingNativeCurrency")
	}
	if !equalFloatPtr(prev.USDConversionRate, next.USDConversionRate) {
		changed = append(changed, "usdConversionRate")
	}
	return changed
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
