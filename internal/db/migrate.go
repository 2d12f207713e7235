package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

type migrationStep struct {
	name string
	run  func(tx *gorm.DB) error
}

// migrationSteps creates the news schema, lets gorm shape the tables from
// models.go, then adds the constraints and indexes gorm tags cannot express.
func migrationSteps() []migrationStep {
	return []migrationStep{
		{name: "create schema", run: execScript(preAutoMigrateSQL)},
		{name: "auto-migrate models", run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(autoMigrateModels()...)
		}},
		{name: "constraints and indexes", run: execScript(postAutoMigrateSQL)},
	}
}

func (p *Pool) migrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return errPoolNotInitialized
	}

	for _, step := range migrationSteps() {
		if err := step.run(p.gdb.WithContext(ctx)); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func execScript(sqlText string) func(tx *gorm.DB) error {
	trimmed := strings.TrimSpace(sqlText)
	return func(tx *gorm.DB) error {
		if trimmed == "" {
			return nil
		}
		return tx.Exec(trimmed).Error
	}
}
