package analyzers

// stopwordLists holds the most frequent function words per language.
// They drive language detection and delimit key phrase candidates.
var stopwordLists = map[string][]string{
	"en": {
		"a", "about", "after", "all", "also", "an", "and", "any", "are", "as", "at", "be", "been",
		"before", "being", "between", "but", "by", "can", "could", "did", "do", "does", "for",
		"from", "had", "has", "have", "he", "her", "his", "how", "i", "if", "in", "into", "is",
		"it", "its", "more", "most", "no", "not", "of", "on", "or", "other", "our", "she",
		"should", "so", "some", "such", "than", "that", "the", "their", "them", "then", "there",
		"these", "they", "this", "those", "through", "to", "too", "under", "up", "very", "was",
		"we", "were", "what", "when", "which", "while", "who", "will", "with", "would", "you", "your",
	},
	"es": {
		"a", "al", "algo", "como", "con", "de", "del", "desde", "donde", "el", "ella", "ellos",
		"en", "entre", "es", "esta", "este", "esto", "fue", "ha", "hay", "la", "las", "le", "lo",
		"los", "más", "mi", "muy", "no", "nos", "o", "para", "pero", "por", "porque", "que",
		"se", "ser", "si", "sin", "sobre", "son", "su", "sus", "también", "tiene", "un", "una", "y", "ya",
	},
	"fr": {
		"à", "au", "aux", "avec", "ce", "ces", "dans", "de", "des", "du", "elle", "en", "est",
		"et", "été", "il", "ils", "je", "la", "le", "les", "leur", "lui", "mais", "ne", "nous",
		"on", "ou", "où", "par", "pas", "plus", "pour", "qu", "que", "qui", "sa", "se", "ses",
		"son", "sont", "sur", "un", "une", "vous", "y",
	},
	"de": {
		"als", "am", "an", "auch", "auf", "aus", "bei", "bin", "bis", "das", "dass", "dem", "den",
		"der", "des", "die", "ein", "eine", "einem", "einen", "einer", "er", "es", "für", "hat",
		"ich", "im", "in", "ist", "mit", "nach", "nicht", "noch", "nur", "oder", "sich", "sie",
		"sind", "über", "um", "und", "uns", "von", "vor", "war", "wie", "wir", "wird", "zu", "zum", "zur",
	},
	"it": {
		"a", "al", "alla", "anche", "che", "chi", "come", "con", "da", "dal", "dei", "del",
		"della", "delle", "di", "e", "è", "gli", "ha", "hanno", "i", "il", "in", "la", "le",
		"lo", "ma", "mi", "nel", "nella", "non", "o", "per", "più", "questo", "se", "si", "sono",
		"su", "sua", "suo", "tra", "un", "una", "uno",
	},
	"pt": {
		"a", "ao", "aos", "as", "com", "como", "da", "das", "de", "do", "dos", "e", "é", "ela",
		"ele", "em", "entre", "era", "foi", "há", "isso", "já", "mais", "mas", "na", "nas",
		"não", "no", "nos", "o", "os", "ou", "para", "pela", "pelo", "por", "que", "se", "sem",
		"ser", "seu", "sua", "também", "um", "uma",
	},
	"nl": {
		"aan", "al", "als", "bij", "dat", "de", "den", "der", "die", "dit", "door", "een", "en",
		"er", "haar", "heb", "heeft", "het", "hij", "hoe", "ik", "in", "is", "je", "maar", "met",
		"naar", "niet", "nog", "of", "om", "ons", "ook", "op", "over", "te", "tot", "uit", "van",
		"voor", "was", "wat", "we", "werd", "wie", "wij", "zich", "zij", "zijn",
	},
}

// languageOrder fixes tie-breaking between equally scored languages.
var languageOrder = []string{"en", "es", "fr", "de", "it", "pt", "nl"}

// stopwords is the set form of stopwordLists.
var stopwords = func() map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(stopwordLists))
	for lang, words := range stopwordLists {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		sets[lang] = set
	}
	return sets
}()

// stopwordsFor returns the stop-word set for a language hint.
// Unknown languages fall back to English.
func stopwordsFor(lang string) map[string]struct{} {
	if set, ok := stopwords[lang]; ok {
		return set
	}
	return stopwords["en"]
}
