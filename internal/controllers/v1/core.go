package v1

import (
	"fmt"

	"github.com/familos/backend/internal/closing"
	"github.com/familos/backend/internal/ledger"
	"github.com/familos/backend/internal/models"
	"github.com/familos/backend/internal/processor"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// The core components all controllers in this package dispatch to.
var (
	coreLedger   *ledger.Ledger
	corePayments *processor.Processor
	coreClosing  *closing.Closer
)

// Wire initializes the core components on the connected database. It must
// run after models.Connect and before the first request is served.
func Wire() {
	coreLedger = ledger.New(models.DB)
	corePayments = processor.New(models.DB, coreLedger)
	coreClosing = closing.New(models.DB, coreLedger)
}

// stringFilters applies the name, note and search filters to the query.
func stringFilters(db, query *gorm.DB, setFields []string, name, note, search string) *gorm.DB {
	if name != "" {
		query = query.Where("name LIKE ?", fmt.Sprintf("%%%s%%", name))
	} else if slices.Contains(setFields, "Name") {
		query = query.Where("name = ''")
	}

	if note != "" {
		query = query.Where("note LIKE ?", fmt.Sprintf("%%%s%%", note))
	} else if slices.Contains(setFields, "Note") {
		query = query.Where("note = ''")
	}

	if search != "" {
		query = query.Where(
			db.Where("note LIKE ?", fmt.Sprintf("%%%s%%", search)).Or(
				db.Where("name LIKE ?", fmt.Sprintf("%%%s%%", search)),
			),
		)
	}

	return query
}

// baseURL returns the API base URL for building resource links.
func baseURL(c *gin.Context) string {
	return c.GetString(string(models.DBContextURL))
}
