// Sentinel - grounded UPSC question answering and essay evaluation
//
// Sentinel answers civil-services exam questions and critiques practice
// essays using only passages retrieved from a knowledge graph of ingested
// study material. Every invocation runs the same three stages on a typed
// state graph:
//
//	route -> retrieve -> generate
//
// Routing classifies the query into one of three intents and extracts
// entities. The classification is advisory: retrieval and generation run the
// same way whatever it says. Retrieval embeds the query, asks the vector store
// for the top matches and formats them as source-tagged blocks. Generation
// answers (query mode) or writes a three-part critique ending in an X/10 score
// (evaluate mode), instructed to use nothing but the retrieved context.
//
// # Quick Start
//
//	export GROQ_API_KEY=...
//	export GEMINI_API_KEY=...
//	export FALKORDB_ADDR=localhost:6379
//
//	sentinel setup
//	sentinel ingest -file laxmikanth.pdf -title "Indian Polity" -topic "Fundamental Rights" -paper GS-2
//	sentinel ask "What is Article 21?"
//	sentinel evaluate -file essay.txt
//	sentinel chat -telemetry
//	sentinel serve -addr :8080
//
// # Library use
//
//	embedder, _ := embedding.OpenAICompatible(config.GeminiBaseURL, geminiKey, "gemini-embedding-001", 3072, 15)
//	vs, _ := store.NewFalkorDBStore("falkordb://localhost:6379/sentinel")
//	routerModel, _ := inference.OpenAICompatible(config.GroqBaseURL, groqKey, "llama-3.1-8b-instant")
//	genModel, _ := inference.OpenAICompatible(config.GroqBaseURL, groqKey, "llama-3.3-70b-versatile",
//		inference.WithTemperature(0.1))
//
//	a, err := agent.New(router.New(routerModel), retriever.New(embedder, vs), generator.New(genModel))
//	if err != nil {
//		return err
//	}
//	st, err := a.Invoke(ctx, "What is Article 21?", rag.ModeQuery)
//
// On failure Invoke returns a state with Stage FAILED and a *rag.Error whose
// Kind is inference_provider, retrieval or configuration.
//
// # Package Structure
//
//   - graph: typed linear state graph with schema merge and node listeners
//   - agent: the route, retrieve, generate pipeline
//   - rag: shared types, collaborator interfaces and typed errors
//   - rag/router, rag/retriever, rag/generator: the three stages
//   - rag/inference, rag/embedding: langchaingo provider adapters
//   - rag/store: FalkorDB, pgvector and in-memory knowledge stores
//   - rag/ingest: PDF and text loading, splitting and batched embedding
//   - store: chat history with memory, redis, sqlite and postgres backends
//   - config: YAML, .env and environment configuration
//   - render: terminal and HTML output
//   - log: leveled logger with stdlib and golog backends
package sentinel // import "github.com/sentinel-zero/sentinel"
