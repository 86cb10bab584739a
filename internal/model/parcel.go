package model

// Parcel is the cadastral land unit returned for a point lookup.
type Parcel struct {
	ID      string `json:"id"`
	Numero  string `json:"numero"`
	Feuille string `json:"feuille"`
	Section string `json:"section"`
	CodeDep string `json:"code_dep"`
	CodeCom string `json:"code_com"`
	ComAbs  string `json:"com_abs"`
	Echelle string `json:"echelle"`
	CodeArr string `json:"code_arr"`
}

// ParcelFields lists the parcel attributes in output column order.
var ParcelFields = []string{
	"id",
	"numero",
	"feuille",
	"section",
	"code_dep",
	"code_com",
	"com_abs",
	"echelle",
	"code_arr",
}

// Values returns the parcel attributes ordered like ParcelFields.
func (p *Parcel) Values() []string {
	return []string{
		p.ID,
		p.Numero,
		p.Feuille,
		p.Section,
		p.CodeDep,
		p.CodeCom,
		p.ComAbs,
		p.Echelle,
		p.CodeArr,
	}
}
