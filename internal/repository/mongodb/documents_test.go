package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

func TestApplicationDocumentKeepsDoseVariants(t *testing.T) {
	app := models.Application{
		ID:     "app-1",
		Name:   "Fertilización marzo",
		Type:   models.ApplicationFertilization,
		Estado: models.EstadoCalculada,
		Mixtures: []models.Mixture{
			{
				ID:   "m1",
				Name: "Mezcla 1",
				Products: []models.ProductInMixture{
					{ProductID: "urea", ProductName: "Urea", Unit: "kg", Dose: models.FertilizationDose{Large: 0.05, Medium: 0.03}, BagSize: 50, RequiredQuantity: 70},
					{ProductID: "fung", ProductName: "Fungicida", Unit: "L", Dose: models.SprayDose{PerContainer: 50, Unit: models.DoseUnitCC}, RequiredQuantity: 5},
				},
				LotIDs: []string{"L1"},
			},
		},
	}

	raw, err := bson.Marshal(toApplicationDocument(app))
	require.NoError(t, err)

	var decoded applicationDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	got := decoded.toModel()

	assert.Equal(t, "app-1", got.ID)
	assert.Equal(t, models.EstadoCalculada, got.Estado)
	require.Len(t, got.Mixtures, 1)
	assert.Equal(t, app.Mixtures[0], got.Mixtures[0])
}

func TestApplicationDocumentStoresMixturesUnderOneKey(t *testing.T) {
	app := models.Application{ID: "app-2", Mixtures: []models.Mixture{{ID: "m1", Name: "Mezcla 1"}}}

	raw, err := bson.Marshal(toApplicationDocument(app))
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	assert.Equal(t, "app-2", generic["_id"])
	mixtures, ok := generic["mixtures"].(bson.A)
	require.True(t, ok)
	assert.Len(t, mixtures, 1)
}
