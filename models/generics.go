package models

import (
	"context"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"gorm.io/gorm"
)

// FindEntitiesInBatches streams every row of T to fn in insertion order
// without loading the table into memory. The merge reconciler uses this to
// fold the full local store, including rows the push synchronizer already
// drained.
func FindEntitiesInBatches[T any](ctx context.Context, batchSize int, fn func(batch []T) error) error {
	var batch []T
	return config.GetDB().WithContext(ctx).
		Order("id ASC").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

func CountEntities[T any](ctx context.Context) (int64, error) {
	var model T
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&model).Count(&count).Error
	return count, err
}
