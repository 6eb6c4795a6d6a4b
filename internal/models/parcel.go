package models

// Известные значения etat. Набор открытый: провайдер добавляет новые статусы
// без предупреждения, поэтому строки передаются как есть и не нормализуются.
const (
	StatusPending        = "En Attente"
	StatusReadyForPickup = "Pret a Enlever"
	StatusInTransit      = "En Cours"
	StatusDelivered      = "Livre"
	StatusReturned       = "Retour"
	StatusAnomaly        = "Anomalie"
)

// Parcel types as the provider encodes them.
const (
	TypeSale     = "VO"
	TypeExchange = "EC"
	TypeDocument = "DO"
)

// Parcel is one "colis" as returned by the provider. JSON tags follow the
// provider's field names so payloads extracted from envelopes decode directly.
// Code (code barre) is the canonical identifier; it is empty on records the
// provider has not confirmed yet.
type Parcel struct {
	Code         string `json:"code,omitempty"`
	ParcelNumber string `json:"numero_colis,omitempty"`
	Reference    string `json:"reference,omitempty"`

	Client   string `json:"client"`
	Address  string `json:"adresse"`
	City     string `json:"ville"`
	Province string `json:"gouvernorat"`
	Phone1   string `json:"tel1"`
	Phone2   string `json:"tel2,omitempty"`

	Designation string    `json:"designation"`
	PieceCount  FlexInt   `json:"nb_pieces"`
	Weight      FlexFloat `json:"poids,omitempty"`
	Price       FlexFloat `json:"prix"`
	CODAmount   FlexFloat `json:"cod,omitempty"`
	Type        string    `json:"type"`
	Exchange    FlexInt   `json:"echange"`
	Comment     string    `json:"commentaire,omitempty"`

	Status       string `json:"etat,omitempty"`
	CreationDate string `json:"date_creation,omitempty"`
	PickupDate   string `json:"date_enlevement,omitempty"`
	DeliveryDate string `json:"date_livraison,omitempty"`

	// Заполняются только обогащением из REST v2 (в SOAP их нет).
	CourierName      string    `json:"livreur,omitempty"`
	CourierPhone     string    `json:"tel_livreur,omitempty"`
	LastAnomaly      string    `json:"dern_anomalie,omitempty"`
	DeliveryFee      FlexFloat `json:"frais_livraison,omitempty"`
	ReturnFee        FlexFloat `json:"frais_retour,omitempty"`
	CurrentAgency    string    `json:"agence_actuelle,omitempty"`
	ManifestNumber   FlexInt   `json:"num_manifeste,omitempty"`
	PaymentReference string    `json:"num_paiement,omitempty"`
}

// ParcelInput is the payload for AjouterColis / ModifierColis / AjoutVMultiple.
type ParcelInput struct {
	Code        string    `json:"code,omitempty"`
	Reference   string    `json:"reference"`
	Client      string    `json:"client"`
	Address     string    `json:"adresse"`
	City        string    `json:"ville"`
	Province    string    `json:"gouvernorat"`
	Phone1      string    `json:"tel1"`
	Phone2      string    `json:"tel2"`
	Designation string    `json:"designation"`
	Price       FlexFloat `json:"prix"`
	PieceCount  FlexInt   `json:"nb_pieces"`
	Type        string    `json:"type"`
	Comment     string    `json:"commentaire"`
	Exchange    FlexInt   `json:"echange"`
	CODAmount   FlexFloat `json:"cod"`
	Weight      FlexFloat `json:"poids"`
	Status      string    `json:"etat,omitempty"`
}

// Enrichment carries the REST-v2-only fields overlaid onto a Parcel by code.
type Enrichment struct {
	Code         string    `json:"code"`
	CourierName  string    `json:"livreur,omitempty"`
	CourierPhone string    `json:"tel_livreur,omitempty"`
	LastAnomaly  string    `json:"dern_anomalie,omitempty"`
	PickupDate   string    `json:"date_enlevement,omitempty"`
	DeliveryDate string    `json:"date_livraison,omitempty"`
	DeliveryFee  FlexFloat `json:"frais_livraison,omitempty"`
	ReturnFee    FlexFloat `json:"frais_retour,omitempty"`
}
