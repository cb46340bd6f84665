package controllers

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/quicktoolshq/quicktools/internal/pkg/artifacts"
	"github.com/quicktoolshq/quicktools/internal/pkg/billing"
	"github.com/quicktoolshq/quicktools/internal/pkg/cache"
	"github.com/quicktoolshq/quicktools/internal/pkg/constants"
	"github.com/quicktoolshq/quicktools/internal/pkg/database"
	"github.com/quicktoolshq/quicktools/internal/pkg/faceblur"
	"github.com/quicktoolshq/quicktools/internal/pkg/imagetools"
	"github.com/quicktoolshq/quicktools/internal/pkg/ledger"
)

var (
	servicesOnce sync.Once

	ledgerSvc     *ledger.Service
	billingSvc    *billing.Service
	artifactStore *artifacts.Store
	bgRemover     imagetools.BackgroundRemover
	faceDetector  *faceblur.Detector
)

// InitServices wires the shared service singletons. Must run after the
// database and cache connections are established.
func InitServices() {
	servicesOnce.Do(func() {
		db := database.GetDB()
		ledgerSvc = ledger.NewService(ledger.NewRepository(db))
		billingSvc = billing.NewService(billing.NewRepository(db), ledger.TxGranter{}, billing.LoadCatalog())
		artifactStore = artifacts.NewStore(artifacts.NewRedisMetaStore(cache.GetClient()), constants.OutputDir)
		bgRemover = imagetools.NewRembgClient()

		detector, err := faceblur.NewDetector()
		if err != nil {
			log.Warnf("face blur disabled: %v", err)
		} else {
			faceDetector = detector
		}
	})
}

func getLedger() *ledger.Service {
	InitServices()
	return ledgerSvc
}

// Ledger exposes the shared credit ledger to other handler packages.
func Ledger() *ledger.Service {
	return getLedger()
}

// BackgroundRemover exposes the shared background removal client.
func BackgroundRemover() imagetools.BackgroundRemover {
	InitServices()
	return bgRemover
}

func getBilling() *billing.Service {
	InitServices()
	return billingSvc
}

func getArtifactStore() *artifacts.Store {
	InitServices()
	return artifactStore
}
