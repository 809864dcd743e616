package database

import "github.com/NikitaDmitryuk/libria-media-server/internal/models"

type Delivery = models.Delivery
type DeliveredFile = models.DeliveredFile
type DeliveryStatus = models.DeliveryStatus

const (
	DeliveryRunning = models.DeliveryRunning
	DeliveryDone    = models.DeliveryDone
	DeliveryFailed  = models.DeliveryFailed
)
