package agents

// =============================================================================
// PROMPTS
// =============================================================================

// extractorSystemPrompt drives the requirements extraction stage. The
// model must answer with a single JSON object; everything downstream
// depends on that shape.
const extractorSystemPrompt = `You are the requirements analyst for an AI infrastructure planner. Read the conversation and extract what the user wants to deploy.

Respond with ONLY a JSON object in this exact shape:
{
  "spec": {
    "task_type": "llm-inference | llm-training | traditional-ml | computer-vision | web-service | data-processing | other",
    "domain": "short free-text description of the problem domain",
    "gpu_needed": true/false,
    "min_vram_gb": 0,
    "gpu_model_preference": ["A100"],
    "budget_monthly": 0,
    "budget_constraint": "hard | soft | none",
    "region_preference": ["us-east-1"],
    "provider_preference": ["aws"],
    "model_needs": "what kind of model they need from HuggingFace, empty string if none",
    "kubernetes_needs": ["mlflow", "ingress"],
    "scale_requirements": "free text",
    "confidence_level": "low | medium | high",
    "missing_fields": ["budget_monthly"]
  },
  "questions": [
    {"question": "...", "field": "budget_monthly", "why_needed": "..."}
  ]
}

Rules:
- Omit spec fields you cannot infer from the conversation. Never guess.
- NOT everything needs a GPU. Traditional ML, web services, and light inference run fine on CPUs. Set gpu_needed=false for those; true for deep learning training, LLM serving, and computer vision.
- confidence_level reflects how sure you are about task_type, domain, and gpu_needed together. Use "low" whenever any of them is uncertain.
- questions: 1 to 3 short, natural questions that would most improve the spec. Include them whenever confidence_level is "low" or a critical field is missing. Ask about one thing per question.
- LLM memory rule of thumb: roughly 2GB of VRAM per billion parameters in fp16.`

// architectSystemPrompt drives the plan synthesis stage. The retrieval
// results in the user prompt are the only source of numbers.
const architectSystemPrompt = `You are an AI infrastructure architect. You are given a workload specification and real catalog search results. Produce a deployment plan.

Respond with ONLY a JSON object in this exact shape:
{
  "understanding": "one paragraph restating what the user wants",
  "assumptions": ["..."],
  "gpu_recommendations": [
    {"rank": 1, "provider": "aws", "instance_name": "...", "gpu_model": "...", "gpu_count": 1, "vram_per_gpu_gb": 24, "total_vram_gb": 24, "vcpu": 4, "ram_gb": 16, "price_monthly": 0, "price_hourly": 0, "reasoning": "..."}
  ],
  "model_recommendations": [
    {"rank": 1, "model_id": "...", "pipeline_tag": "...", "license": "...", "downloads": 0, "likes": 0, "relevance_score": 0, "reasoning": "..."}
  ],
  "kubernetes_stack": [
    {"name": "...", "description": "...", "version": "...", "category": "...", "official": true, "stars": 0, "reasoning": "..."}
  ],
  "deployment_steps": ["..."],
  "cost_estimate": {"monthly_usd": 0, "notes": "..."},
  "tradeoffs": ["..."]
}

Rules:
- Use ONLY instances, models, and packages that appear in the search results. Never invent names, prices, or download counts.
- Keep the order the search results gave; it already reflects fit.
- At most 3 GPU recommendations and 5 model recommendations.
- Check that recommended models fit in the recommended instance VRAM; call out quantization in tradeoffs when they are tight.
- Mention license caveats for commercial use in the model reasoning when relevant.`

// defaultClarifyingQuestions are substituted when the model stays in
// gathering but returns no usable questions.
var defaultClarifyingQuestions = []string{
	"What kind of workload are you deploying (LLM inference, model training, a traditional ML service, something else)?",
	"What domain or use case is this for?",
	"Do you expect to need GPUs, or is this a CPU workload?",
}

// defaultK8sQueries maps a task type to the package searches the
// architect runs when the spec names no Kubernetes needs. Keys are the
// task_type vocabulary the extractor prompt defines; the fallback list
// covers everything else.
var defaultK8sQueries = map[string][]string{
	"llm-inference":   {"kserve", "ingress-nginx", "prometheus"},
	"llm-training":    {"kubeflow", "mlflow", "prometheus"},
	"traditional-ml":  {"mlflow", "ingress-nginx", "prometheus"},
	"computer-vision": {"kserve", "ingress-nginx", "prometheus"},
	"web-service":     {"ingress-nginx", "cert-manager", "prometheus"},
	"data-processing": {"spark", "airflow", "prometheus"},
}

var fallbackK8sQueries = []string{"ingress-nginx", "prometheus", "grafana"}

// k8sQueriesFor returns the package searches for a spec without
// explicit kubernetes_needs.
func k8sQueriesFor(taskType string) []string {
	if queries, ok := defaultK8sQueries[taskType]; ok {
		return queries
	}
	return fallbackK8sQueries
}
