package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMetricNotFound is returned when a custom metric cannot be resolved.
var ErrMetricNotFound = errors.New("custom metric not found")

// Context values a custom metric can be attached to.
const (
	MetricContextPatient      = "patient"
	MetricContextStudy        = "study"
	MetricContextImageSet     = "image_set"
	MetricContextStructureSet = "structure_set"
	MetricContextPlan         = "plan"
	MetricContextDose         = "dose"
)

// MetricType describes the values a custom metric accepts. Exactly one field is set.
type MetricType struct {
	Number *struct{}   `json:"number,omitempty"`
	String *struct{}   `json:"string,omitempty"`
	Enum   *MetricEnum `json:"enum,omitempty"`
}

// MetricEnum lists the allowed values of an enum metric.
type MetricEnum struct {
	Values []string `json:"values"`
}

// CustomMetric is an organization-defined value attached to ProKnow objects.
type CustomMetric struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Context string     `json:"context"`
	Type    MetricType `json:"type"`
}

// CustomMetricRequest creates a custom metric.
type CustomMetricRequest struct {
	Name    string     `json:"name"`
	Context string     `json:"context"`
	Type    MetricType `json:"type"`
}

// CustomMetrics manages custom metric definitions. Only the name and
// context of an existing metric can be changed.
type CustomMetrics struct {
	crud crud[CustomMetric]
}

func (m *CustomMetrics) Query(ctx context.Context) ([]CustomMetric, error) {
	return m.crud.query(ctx)
}

func (m *CustomMetrics) Create(ctx context.Context, req CustomMetricRequest) (*CustomMetric, error) {
	return m.crud.create(ctx, req)
}

func (m *CustomMetrics) Update(ctx context.Context, metric *CustomMetric) error {
	body := struct {
		Name    string `json:"name"`
		Context string `json:"context"`
	}{metric.Name, metric.Context}
	return m.crud.update(ctx, metric.ID, body)
}

func (m *CustomMetrics) Delete(ctx context.Context, id string) error { return m.crud.delete(ctx, id) }

// Resolve finds a metric by id, or by name ignoring case.
func (m *CustomMetrics) Resolve(ctx context.Context, idOrName string) (*CustomMetric, error) {
	metrics, err := m.Query(ctx)
	if err != nil {
		return nil, err
	}
	for _, metric := range metrics {
		if metric.ID == idOrName {
			return &metric, nil
		}
	}
	for _, metric := range metrics {
		if strings.EqualFold(metric.Name, idOrName) {
			return &metric, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMetricNotFound, idOrName)
}
