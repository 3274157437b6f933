// Copyright 2025 CareFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package monitor implements the follow-up monitoring registry: one Monitor
per patient under post-treatment follow-up, with due-check selection and
a bounded check history.

The registry is an in-memory, thread-safe map owned by whoever constructs
it (the orchestrator in practice). A Postgres store can be attached for
write-through persistence and warm starts; store failures never fail
registry operations.

Operations on unknown patients never return errors - they no-op or report
a false ok, matching the care pipeline's not-found semantics.
*/
package monitor
