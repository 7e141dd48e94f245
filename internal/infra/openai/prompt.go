package openai

const systemPrompt = "You analyze basketball frames for player stats."

const framePrompt = `You are analyzing a youth basketball game frame. Identify:
1. Points scored in this frame, and jersey number of the player (if visible).
2. Passes that are clearly happening (ball in motion between teammates).
3. Rebound attempts or successful rebounds, and jersey number if visible.

Respond with JSON only, exactly in this shape, using empty objects and 0 when nothing is detected:
{
  "points": { "23": 2 },
  "passes": 1,
  "rebounds": { "11": 1 }
}`
