// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateCatalogRecord validates a CatalogRecord according to domain rules.
//
// Validation rules:
//   - ID must not be blank
//   - at most MaxCategories categories
//   - Price, when present, is finite and non-negative
//   - Rating, when present, is within [0, MaxRating]
//   - ReviewCount is non-negative
//
// NOT validated (enforced by the normalizer's acceptance filter):
//   - Title length
func ValidateCatalogRecord(record *CatalogRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if len(record.Categories) > MaxCategories {
		return fmt.Errorf("%w: %w: %d", ErrInvalidRecord, ErrTooManyCategories, len(record.Categories))
	}

	if p := record.Price; p != nil && (*p < 0 || math.IsNaN(*p) || math.IsInf(*p, 0)) {
		return fmt.Errorf("%w: %w: %v", ErrInvalidRecord, ErrInvalidPrice, *p)
	}

	if r := record.Rating; r != nil && !(*r >= 0 && *r <= MaxRating) {
		return fmt.Errorf("%w: %w: %v", ErrInvalidRecord, ErrInvalidRating, *r)
	}

	if record.ReviewCount < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidReviewCount)
	}

	return nil
}

// ValidateEmbeddedRecord validates the record fields and checks that all three
// vectors are present with the expected dimension.
func ValidateEmbeddedRecord(record *EmbeddedRecord, dimension int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddedRecord)
	}

	if err := ValidateCatalogRecord(&record.CatalogRecord); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddedRecord, err)
	}

	for _, col := range VectorColumns {
		if got := len(record.Vector(col)); got != dimension {
			return fmt.Errorf("%w: %w: %s vector has %d values, expected %d",
				ErrInvalidEmbeddedRecord, ErrVectorDimension, col, got, dimension)
		}
	}

	return nil
}
