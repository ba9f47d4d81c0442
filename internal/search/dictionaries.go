package search

import "github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"

// Domain synonym dictionaries for query expansion.
//
// Keys are lowercase domain terms from forestry, peatland, mangrove and
// restoration work. Values are ordered by usefulness; only the first
// maxExpansions entries of a key are ever added to a query.

// IndonesianSynonyms covers Bahasa Indonesia queries.
var IndonesianSynonyms = map[string][]string{
	"hutan":          {"rimba", "kawasan hutan", "tutupan hutan"},
	"deforestasi":    {"penggundulan hutan", "kehilangan hutan", "alih fungsi hutan"},
	"gambut":         {"lahan gambut", "rawa gambut", "ekosistem gambut"},
	"mangrove":       {"bakau", "hutan bakau", "ekosistem pesisir"},
	"bakau":          {"mangrove", "hutan pantai"},
	"karbon":         {"emisi", "stok karbon", "serapan karbon"},
	"emisi":          {"karbon", "gas rumah kaca", "pelepasan karbon"},
	"restorasi":      {"pemulihan", "rehabilitasi", "revitalisasi"},
	"rehabilitasi":   {"restorasi", "pemulihan", "penanaman kembali"},
	"kebakaran":      {"karhutla", "titik api", "api"},
	"lahan":          {"tanah", "areal", "kawasan"},
	"banjir":         {"genangan", "luapan air"},
	"air":            {"hidrologi", "sumber air", "tata air"},
	"keanekaragaman": {"biodiversitas", "keragaman hayati"},
	"satwa":          {"fauna", "hewan liar", "margasatwa"},
	"masyarakat":     {"komunitas", "warga", "penduduk lokal"},
	"adat":           {"masyarakat adat", "ulayat", "hak adat"},
	"petani":         {"pekebun", "kelompok tani"},
	"sawit":          {"kelapa sawit", "perkebunan sawit"},
	"perhutanan":     {"perhutanan sosial", "hutan desa", "hutan kemasyarakatan"},
	"dampak":         {"pengaruh", "akibat", "efek"},
	"lokasi":         {"wilayah", "daerah", "koordinat"},
	"wilayah":        {"daerah", "kawasan", "area"},
	"proyek":         {"program", "kegiatan", "inisiatif"},
	"biaya":          {"anggaran", "pendanaan", "investasi"},
	"iklim":          {"perubahan iklim", "adaptasi iklim", "mitigasi"},
	"pesisir":        {"pantai", "kawasan pesisir"},
}

// MalaySynonyms covers Bahasa Melayu queries.
var MalaySynonyms = map[string][]string{
	"hutan":     {"rimba", "kawasan hutan", "hutan simpan"},
	"paya":      {"tanah gambut", "paya gambut", "tanah lembap"},
	"gambut":    {"paya gambut", "tanah gambut"},
	"bakau":     {"mangrove", "hutan paya laut"},
	"karbon":    {"pelepasan karbon", "stok karbon"},
	"pemulihan": {"restorasi", "pemuliharaan", "penanaman semula"},
	"kebakaran": {"jerebu", "titik panas", "api"},
	"kawasan":   {"wilayah", "daerah", "tapak"},
	"projek":    {"program", "inisiatif", "aktiviti"},
	"komuniti":  {"masyarakat", "penduduk setempat"},
	"banjir":    {"bah", "limpahan air"},
	"iklim":     {"perubahan iklim", "adaptasi iklim"},
	"kos":       {"belanja", "pembiayaan"},
}

// EnglishSynonyms covers English queries and is the fallback dictionary.
var EnglishSynonyms = map[string][]string{
	"forest":        {"woodland", "tree cover", "forestry"},
	"deforestation": {"forest loss", "clearing", "land conversion"},
	"peat":          {"peatland", "peat swamp", "organic soil"},
	"peatland":      {"peat", "peat swamp", "wetland"},
	"mangrove":      {"coastal forest", "blue carbon", "mangal"},
	"carbon":        {"emissions", "carbon stock", "sequestration"},
	"emission":      {"carbon", "greenhouse gas", "ghg"},
	"restoration":   {"rehabilitation", "recovery", "reforestation"},
	"reforestation": {"restoration", "replanting", "afforestation"},
	"fire":          {"wildfire", "hotspot", "burning"},
	"flood":         {"inundation", "flooding", "waterlogging"},
	"water":         {"hydrology", "watershed", "water table"},
	"biodiversity":  {"species richness", "wildlife", "habitat"},
	"community":     {"local people", "villagers", "stakeholders"},
	"indigenous":    {"customary", "adat", "local communities"},
	"land":          {"area", "site", "landscape"},
	"impact":        {"effect", "outcome", "consequence"},
	"location":      {"region", "site", "coordinates"},
	"project":       {"program", "initiative", "intervention"},
	"cost":          {"budget", "funding", "investment"},
	"climate":       {"climate change", "adaptation", "mitigation"},
	"nature":        {"nature-based", "ecosystem", "natural"},
	"agroforestry":  {"mixed cropping", "tree crops"},
	"palm":          {"oil palm", "plantation"},
}

// defaultDictionaries maps each language with its own dictionary.
// Languages missing from the map use English.
func defaultDictionaries() map[lang.Code]map[string][]string {
	return map[lang.Code]map[string][]string{
		lang.Indonesian: IndonesianSynonyms,
		lang.Malay:      MalaySynonyms,
		lang.English:    EnglishSynonyms,
	}
}
