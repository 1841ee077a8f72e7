package esios

const DefaultURL = "https://api.esios.ree.es/archives/70/download_json"

type esiosResponse struct {
	PVPC []pvpcEntry `json:"PVPC"`
}

// Numbers come as Spanish formatted strings, "123,45".
type pvpcEntry struct {
	Dia  string `json:"Dia"`
	Hora string `json:"Hora"`
	PCB  string `json:"PCB"`
	GEN  string `json:"GEN"`
}
