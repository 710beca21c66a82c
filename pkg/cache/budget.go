package cache

// Thresholds for storage budget observability. The cache never evicts;
// these states only drive logging and dashboards so retention tooling can
// act before the backend fills up.
const (
	// UtilizationWarning flags the cache as approaching its byte budget.
	UtilizationWarning = 0.80

	// UtilizationCritical flags the cache as effectively full.
	UtilizationCritical = 0.95
)

// BudgetState classifies storage utilization against the configured budget.
type BudgetState string

const (
	// BudgetHealthy means utilization is below the warning threshold.
	BudgetHealthy BudgetState = "healthy"

	// BudgetWarning means utilization crossed the warning threshold.
	BudgetWarning BudgetState = "warning"

	// BudgetCritical means utilization crossed the critical threshold.
	BudgetCritical BudgetState = "critical"

	// BudgetUnlimited means no budget is configured.
	BudgetUnlimited BudgetState = "unlimited"
)

// ClassifyUtilization maps stored bytes and a byte budget to a state.
// A zero or negative budget disables classification.
func ClassifyUtilization(totalBytes, budgetBytes int64) (float64, BudgetState) {
	if budgetBytes <= 0 {
		return 0, BudgetUnlimited
	}

	utilization := float64(totalBytes) / float64(budgetBytes)
	switch {
	case utilization >= UtilizationCritical:
		return utilization, BudgetCritical
	case utilization >= UtilizationWarning:
		return utilization, BudgetWarning
	default:
		return utilization, BudgetHealthy
	}
}
