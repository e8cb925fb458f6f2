// Package growth implements the closed-form growth-curve family: for
// each model form, the prediction and fixed-effects gradient functions, the
// regeneration-lag wiring, and the small parameter-schema deltas (whether
// a random effect or a nuisance variance is needed) that the rest of the
// fitting engine treats as opaque per-form data.
package growth

import "math"

// Form names the exact model-form identifiers from the external interface.
type Form string

const (
	ChapmanRichards                                   Form = "ChapmanRichards"
	ChapmanRichardsWithRandomEffect                    Form = "ChapmanRichardsWithRandomEffect"
	ChapmanRichardsDerivative                          Form = "ChapmanRichardsDerivative"
	ChapmanRichardsDerivativeWithRandomEffect          Form = "ChapmanRichardsDerivativeWithRandomEffect"
	Exponential                                        Form = "Exponential"
	ExponentialWithRandomEffect                         Form = "ExponentialWithRandomEffect"
	ModifiedChapmanRichardsDerivative                   Form = "ModifiedChapmanRichardsDerivative"
	ModifiedChapmanRichardsDerivativeWithRandomEffect   Form = "ModifiedChapmanRichardsDerivativeWithRandomEffect"
)

// StartingValue is one row of a parameter-schema default: a named fixed
// effect together with its starting value and uniform-prior bounds.
type StartingValue struct {
	Name  string
	Start float64
	Lower float64
	Upper float64
}

// Variant is one growth-model form, plain or mixed. Predict and Gradient
// never see the regeneration lag directly: the caller (metamodel.Model) is
// responsible for substituting the effective age.
type Variant struct {
	form  Form
	base  Form // the plain form sharing this variant's formula, even for *WithRandomEffect
	mixed bool
}

// Lookup returns the Variant for an exact model-form name, and false if the
// name isn't one of the eight recognized forms.
func Lookup(name Form) (Variant, bool) {
	switch name {
	case ChapmanRichards:
		return Variant{form: name, base: ChapmanRichards, mixed: false}, true
	case ChapmanRichardsWithRandomEffect:
		return Variant{form: name, base: ChapmanRichards, mixed: true}, true
	case ChapmanRichardsDerivative:
		return Variant{form: name, base: ChapmanRichardsDerivative, mixed: false}, true
	case ChapmanRichardsDerivativeWithRandomEffect:
		return Variant{form: name, base: ChapmanRichardsDerivative, mixed: true}, true
	case Exponential:
		return Variant{form: name, base: Exponential, mixed: false}, true
	case ExponentialWithRandomEffect:
		return Variant{form: name, base: Exponential, mixed: true}, true
	case ModifiedChapmanRichardsDerivative:
		return Variant{form: name, base: ModifiedChapmanRichardsDerivative, mixed: false}, true
	case ModifiedChapmanRichardsDerivativeWithRandomEffect:
		return Variant{form: name, base: ModifiedChapmanRichardsDerivative, mixed: true}, true
	default:
		return Variant{}, false
	}
}

// Name returns the model-form identifier this variant was looked up under.
func (v Variant) Name() Form { return v.form }

// Mixed reports whether this variant carries a per-block random effect.
func (v Variant) Mixed() bool { return v.mixed }

// EffectList returns the ordered fixed-effect names (b1..bk) for this form.
func (v Variant) EffectList() []string {
	switch v.base {
	case Exponential:
		return []string{"b1", "b2"}
	case ModifiedChapmanRichardsDerivative:
		return []string{"b1", "b2", "b3", "b4"}
	default: // ChapmanRichards, ChapmanRichardsDerivative
		return []string{"b1", "b2", "b3"}
	}
}

// Defaults returns the default starting schema for this form's fixed
// effects: a biologically plausible asymptote/rate/shape starting point
// with wide uniform bounds, used when the caller passes a nil ParamConfig.
func (v Variant) Defaults() []StartingValue {
	switch v.base {
	case Exponential:
		return []StartingValue{
			{Name: "b1", Start: 100, Lower: 0, Upper: 1000},
			{Name: "b2", Start: 0.05, Lower: 0, Upper: 2},
		}
	case ModifiedChapmanRichardsDerivative:
		return []StartingValue{
			{Name: "b1", Start: 100, Lower: 0, Upper: 1000},
			{Name: "b2", Start: 0.05, Lower: 0, Upper: 2},
			{Name: "b3", Start: 0.05, Lower: 0, Upper: 2},
			{Name: "b4", Start: 2, Lower: 0.1, Upper: 20},
		}
	default:
		return []StartingValue{
			{Name: "b1", Start: 100, Lower: 0, Upper: 1000},
			{Name: "b2", Start: 0.05, Lower: 0, Upper: 2},
			{Name: "b3", Start: 2, Lower: 0.1, Upper: 20},
		}
	}
}

// Definition returns a one-line textual form of the model, used only in
// reports.
func (v Variant) Definition() string {
	switch v.base {
	case ChapmanRichards:
		return "(b1+u)*(1-exp(-b2*t))^b3"
	case ChapmanRichardsDerivative:
		return "(b1+u)*exp(-b2*t)*(1-exp(-b2*t))^b3"
	case Exponential:
		return "(b1+u)*exp(-b2*t)"
	case ModifiedChapmanRichardsDerivative:
		return "(b1+u)*exp(-b2*t)*(1-exp(-b3*t))^b4"
	default:
		return "unknown"
	}
}

// Predict evaluates mu(t, u) at effective age t (the caller has already
// subtracted any regeneration lag and checked t > 0). parms holds the fixed
// effects in EffectList order.
func (v Variant) Predict(t, u float64, parms []float64) float64 {
	switch v.base {
	case ChapmanRichards:
		b1, b2, b3 := parms[0], parms[1], parms[2]
		w := 1 - math.Exp(-b2*t)
		return (b1 + u) * math.Pow(w, b3)
	case ChapmanRichardsDerivative:
		b1, b2, b3 := parms[0], parms[1], parms[2]
		e := math.Exp(-b2 * t)
		w := 1 - e
		return (b1 + u) * e * math.Pow(w, b3)
	case Exponential:
		b1, b2 := parms[0], parms[1]
		return (b1 + u) * math.Exp(-b2*t)
	case ModifiedChapmanRichardsDerivative:
		b1, b2, b3, b4 := parms[0], parms[1], parms[2], parms[3]
		e := math.Exp(-b2 * t)
		v2 := 1 - math.Exp(-b3*t)
		return (b1 + u) * e * math.Pow(v2, b4)
	default:
		return 0
	}
}

// Gradient returns d(mu)/d(b_i) for each fixed effect in EffectList order,
// at effective age t. u is held fixed (it is a random draw, not a fixed
// effect, so it carries no gradient entry).
func (v Variant) Gradient(t, u float64, parms []float64) []float64 {
	switch v.base {
	case ChapmanRichards:
		b1, b2, b3 := parms[0], parms[1], parms[2]
		w := 1 - math.Exp(-b2*t)
		if w <= 0 {
			return []float64{0, 0, 0}
		}
		wb3 := math.Pow(w, b3)
		db1 := wb3
		dw_db2 := t * math.Exp(-b2*t)
		db2 := (b1 + u) * b3 * math.Pow(w, b3-1) * dw_db2
		db3 := (b1 + u) * wb3 * math.Log(w)
		return []float64{db1, db2, db3}
	case ChapmanRichardsDerivative:
		b1, b2, b3 := parms[0], parms[1], parms[2]
		w := math.Exp(-b2 * t)
		oneMinusW := 1 - w
		g := math.Pow(oneMinusW, b3)
		db1 := w * g
		db2 := -(b1 + u) * t * w * g
		if oneMinusW > 0 {
			db2 += (b1 + u) * t * w * b3 * w * math.Pow(oneMinusW, b3-1)
		}
		db3 := 0.0
		if oneMinusW > 0 {
			db3 = (b1 + u) * w * g * math.Log(oneMinusW)
		}
		return []float64{db1, db2, db3}
	case Exponential:
		b1, b2 := parms[0], parms[1]
		e := math.Exp(-b2 * t)
		db1 := e
		db2 := -(b1 + u) * t * e
		return []float64{db1, db2}
	case ModifiedChapmanRichardsDerivative:
		b1, b2, b4 := parms[0], parms[1], parms[3]
		w := math.Exp(-b2 * t)
		vv := 1 - math.Exp(-parms[2]*t)
		g := math.Pow(vv, b4)
		db1 := w * g
		db2 := -(b1 + u) * t * w * g
		db3 := 0.0
		if vv > 0 {
			db3 = (b1 + u) * w * b4 * math.Pow(vv, b4-1) * t * (1 - vv)
		}
		db4 := 0.0
		if vv > 0 {
			db4 = (b1 + u) * w * g * math.Log(vv)
		}
		return []float64{db1, db2, db3, db4}
	default:
		return nil
	}
}

// InterceptGradientIndex returns the index into EffectList of the
// intercept-like coefficient (b1) that the random effect enters through,
// used by predictionVariance's includeRandomEffect term.
func (v Variant) InterceptGradientIndex() int { return 0 }
