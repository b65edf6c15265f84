package domain

// ResultKind tags the shape of a predicate result.
type ResultKind int

const (
	// ResultShadow means the predicate had no opinion; only a shadow verdict
	// proving the run executed is reported.
	ResultShadow ResultKind = iota
	// ResultSingle is one verdict about the default subject, either structured
	// or as a bare compliance type.
	ResultSingle
	// ResultList is the general case.
	ResultList
)

// Result is what a rule predicate returns.
type Result struct {
	kind       ResultKind
	compliance ComplianceType
	verdict    *Verdict
	verdicts   []Verdict
}

func Shadow() Result {
	return Result{kind: ResultShadow}
}

// Bare is the single-subject shorthand: the compliance type applies to the
// invocation's default subject.
func Bare(ct ComplianceType) Result {
	return Result{kind: ResultSingle, compliance: ct}
}

func Single(v Verdict) Result {
	return Result{kind: ResultSingle, verdict: &v}
}

func List(verdicts ...Verdict) Result {
	return Result{kind: ResultList, verdicts: verdicts}
}

func (r Result) Kind() ResultKind {
	return r.kind
}

// Bare returns the compliance type of a single-subject shorthand result.
func (r Result) Bare() (ComplianceType, bool) {
	if r.kind != ResultSingle || r.verdict != nil {
		return "", false
	}
	return r.compliance, true
}

func (r Result) Verdict() (Verdict, bool) {
	if r.kind != ResultSingle || r.verdict == nil {
		return Verdict{}, false
	}
	return *r.verdict, true
}

func (r Result) Verdicts() []Verdict {
	return r.verdicts
}
