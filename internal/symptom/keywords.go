package symptom

type regionKeywordSet struct {
	region   Region
	keywords []string
}

// Order matters: the first region with a hit wins, so the more specific
// upper-back phrases are tested before the generic "costas".
var regionKeywords = []regionKeywordSet{
	{RegionShoulder, []string{"ombro", "deltoide", "deltoid", "manguito", "escapula", "shoulder", "rotator cuff", "scapula"}},
	{RegionKnee, []string{"joelho", "patela", "menisco", "knee", "kneecap", "patella", "meniscus"}},
	{RegionUpperBack, []string{"toracica", "meio das costas", "parte de cima das costas", "upper back", "thoracic"}},
	{RegionLowerBack, []string{"lombar", "costas", "coluna", "lombo", "l4", "l5", "lower back", "low back", "lumbar", "spine"}},
	{RegionWrist, []string{"pulso", "punho", "carpo", "wrist"}},
	{RegionHip, []string{"quadril", "virilha", "iliaco", "coxofemoral", "hip", "groin"}},
	{RegionElbow, []string{"cotovelo", "epicondilo", "elbow"}},
	{RegionAnkle, []string{"tornozelo", "calcanhar", "aquiles", "ankle", "achilles", "heel"}},
	{RegionNeck, []string{"pescoco", "cervical", "nuca", "neck"}},
	{RegionHand, []string{"mao", "maos", "dedo", "dedos", "hand", "finger"}},
	{RegionFoot, []string{"pe", "pes", "arco do pe", "plantar", "foot", "feet"}},
}

var painKeywords = []string{
	"dor", "dores", "doi", "doendo", "dolorido", "desconforto", "incomodo",
	"fisgada", "choque", "queimacao", "formigamento", "dormencia",
	"estalo", "estala", "travamento", "pressao", "pontada", "latejante", "pulsante",
	"pain", "painful", "hurt", "hurts", "ache", "aching", "sore", "burning",
	"tingling", "numbness", "twinge",
}

var questionPhrases = []string{
	"como faco", "como eu", "o que fazer", "o que devo", "alguem sabe",
	"preciso de ajuda", "me ajuda", "me ajudem", "duvida", "nao sei",
	"sera que", "por que", "porque", "qual", "quanto", "quando",
	"how do i", "how can i", "what should i", "does anyone know", "need help",
	"help me", "any advice", "why does", "should i",
}
