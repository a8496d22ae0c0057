package models

import (
	"time"

	"gorm.io/gorm"
)

// GoalType is the direction a user's nutrition goals aim for.
type GoalType string

const (
	GoalGain     GoalType = "gain"
	GoalLose     GoalType = "lose"
	GoalMaintain GoalType = "maintain"
)

// NutritionGoals holds a user's daily macro and calorie targets. At most one
// active row exists per user; writes use upsert semantics.
type NutritionGoals struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"uniqueIndex;not null" json:"userId"`
	DailyCalories float64   `gorm:"not null;check:daily_calories >= 0" json:"dailyCalories"`
	DailyProtein  float64   `gorm:"not null;check:daily_protein >= 0" json:"dailyProtein"`
	DailyFat      float64   `gorm:"not null;check:daily_fat >= 0" json:"dailyFat"`
	DailyCarbs    float64   `gorm:"not null;check:daily_carbs >= 0" json:"dailyCarbs"`
	GoalType      GoalType  `gorm:"size:16;not null;default:'maintain'" json:"goalType"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	SyncMeta `gorm:"embedded"`
}

func (g *NutritionGoals) BeforeCreate(tx *gorm.DB) error {
	g.stampCreate()
	return nil
}
