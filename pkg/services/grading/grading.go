// Package grading maps an estimated card grade to a condition label.
package grading

import "cardvault/pkg/models"

// Grade returns the condition label for a grade on a roughly 0-10 scale and
// the grade to store alongside it. An absent or zero grade is labelled
// Near Mint with no stored grade.
func Grade(grade *float64) (models.Condition, *float64) {
	if grade == nil || *grade == 0 {
		return models.ConditionNearMint, nil
	}

	g := *grade
	switch {
	case g >= 9.0:
		return models.ConditionNearMint, &g
	case g >= 7.0:
		return models.ConditionLightlyPlayed, &g
	case g >= 5.0:
		return models.ConditionModeratelyPlayed, &g
	case g >= 3.0:
		return models.ConditionHeavilyPlayed, &g
	default:
		return models.ConditionDamaged, &g
	}
}
