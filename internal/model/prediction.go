package model

// Method identifies which signal produced a prediction.
type Method string

const (
	MethodRule        Method = "rule"
	MethodStatistical Method = "statistical"
	MethodHybrid      Method = "hybrid"
	MethodNone        Method = "none"
)

// Prediction is the confidence-scored outcome of classifying one record.
// Transient: produced per classification call, never persisted by the
// core.
type Prediction struct {
	Record     FileRecord       `json:"record"`
	Fields     map[Field]string `json:"fields,omitempty"`
	Confidence float64          `json:"confidence"`
	Method     Method           `json:"method"`
	Rule       *Rule            `json:"rule,omitempty"`
}

// AnomalyReason explains why a record was flagged.
type AnomalyReason string

const (
	// ReasonNoRule means no rule's shape matched the record at all.
	ReasonNoRule AnomalyReason = "no_rule_matched"
	// ReasonLowConfidence means the best matching rule fell below the
	// anomaly reporting threshold.
	ReasonLowConfidence AnomalyReason = "low_confidence"
)

// AnomalyRecord is a record no rule sufficiently explains, produced
// fresh on every scan.
type AnomalyRecord struct {
	Record     FileRecord    `json:"record"`
	Reason     AnomalyReason `json:"reason"`
	Rule       *Rule         `json:"rule,omitempty"` // best match when reason is low_confidence
	Confidence float64       `json:"confidence"`
}
